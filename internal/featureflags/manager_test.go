package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", 1) || !m.Enabled("c", 1) || !m.Enabled("e", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", 1) || m.Enabled("d", 1) || m.Enabled("f", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestOptimisticUpdates_DefaultsOn(t *testing.T) {
	if !NewManager("").Enabled(OptimisticUpdates, 0) {
		t.Fatal("optimistic updates should default to on")
	}
	if NewManager("optimistic_updates=off").Enabled(OptimisticUpdates, 0) {
		t.Fatal("configured value should override the default")
	}
}

func TestSetAndFunc(t *testing.T) {
	m := NewManager("")
	enabled := m.Func(OptimisticUpdates, nil)
	if !enabled() {
		t.Fatal("expected default on")
	}
	m.Set("Optimistic_Updates", "OFF")
	if enabled() {
		t.Fatal("Func should observe runtime overrides")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 4 {
		t.Fatalf("expected 3 parsed flags plus the default, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot(123)
	if len(snap) != 4 {
		t.Fatalf("expected snapshot size 4, got %d", len(snap))
	}
	if names := m.Names(); names[0] != OptimisticUpdates {
		t.Fatalf("expected sorted names, got %v", names)
	}
}
