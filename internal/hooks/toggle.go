package hooks

import (
	"context"
	"errors"

	"chub/internal/models"
	"chub/internal/optimistic"
)

// toggleTarget describes one viewer relationship to flip optimistically.
type toggleTarget struct {
	key     string
	label   string
	counted bool
	read    func() (flag bool, count int, found bool)
	write   func(flag bool, count int)
}

// toggleRun tracks one toggle call across the Mutation steps.
type toggleRun struct {
	c       *core
	target  toggleTarget
	want    bool
	tracked bool
	found   bool
}

// begin flips the cached relationship before the request is sent. A target
// already in the wanted state is sent without a local flip.
func (r *toggleRun) begin(context.Context) error {
	flag, count, found := r.target.read()
	r.found = found
	if !found {
		flag = !r.want
	}
	if found && flag == r.want {
		return nil
	}
	tg, err := r.c.tracker.Begin(r.target.key, flag, count, r.target.counted && found)
	if errors.Is(err, optimistic.ErrPending) {
		return models.NewTogglePendingError(r.target.label, err)
	}
	if err != nil {
		return err
	}
	r.tracked = true
	if found && r.c.tracker.Optimistic() {
		r.target.write(tg.State.Flag(), tg.Count)
	}
	return nil
}

// settle resolves the toggle and writes the settled values, which on failure
// are exactly the values read in begin.
func (r *toggleRun) settle(out optimistic.Outcome) {
	if !r.tracked {
		if out.Err == nil && r.found {
			flag, count, _ := r.target.read()
			if out.Flag != nil {
				flag = *out.Flag
			}
			if out.Count != nil {
				count = max(*out.Count, 0)
			}
			r.target.write(flag, count)
		}
		return
	}
	settled, ok := r.c.tracker.Settle(r.target.key, out)
	if !ok {
		return
	}
	if !r.found {
		// The pre-toggle state was guessed; only a confirmed result is worth showing.
		if out.Err != nil {
			r.c.tracker.Forget(r.target.key)
		}
		return
	}
	r.target.write(settled.State.Flag(), settled.Count)
}
