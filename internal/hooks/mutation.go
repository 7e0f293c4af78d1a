package hooks

import (
	"context"

	"chub/internal/apiclient"
	"chub/internal/models"
	"chub/internal/observability"
	"chub/internal/querycache"
	"chub/internal/session"

	"go.opentelemetry.io/otel/attribute"
)

// Mutation is one write. Steps run in order: validate, auth check, prepare,
// request, settled. On success the declared keys are invalidated, then the
// success notification is sent, then onSuccess runs. On failure the error
// notification is sent and the error returned.
type Mutation[In, Out any] struct {
	c *core
	// action names the write in logs and in the not-logged-in message.
	action   string
	public   bool
	validate func(In) error
	prepare  func(ctx context.Context, in In) error
	do       func(ctx context.Context, token string, in In) (Out, error)
	settled  func(ctx context.Context, in In, out Out, err error)
	// invalidates lists the keys a successful write makes stale; keysFor
	// adds keys that depend on the input or response.
	invalidates []querycache.Key
	keysFor     func(in In, out Out) []querycache.Key
	// success is the notification text; "" sends none.
	success   string
	failure   string
	onSuccess func(ctx context.Context, in In, out Out)
}

// Run executes the mutation.
func (m *Mutation[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	var zero Out
	span, ctx := observability.NewInternalSpan(ctx, "mutation "+m.action,
		attribute.String("mutation.action", m.action),
	)
	defer span.End()

	fail := func(err error) (Out, error) {
		span.SetError(err)
		m.c.notifier.Error(ctx, apiclient.UserMessage(err, m.failure))
		m.c.log.LogMutation(ctx, m.action, nil, err)
		return zero, err
	}

	if m.validate != nil {
		if err := m.validate(in); err != nil {
			return fail(err)
		}
	}

	var token string
	if !m.public {
		status, _ := m.c.session.Resolve(ctx)
		if status != session.StatusAuthenticated {
			return fail(models.NewNotAuthenticatedError(m.action))
		}
		token = m.c.session.Token()
	}

	if m.prepare != nil {
		if err := m.prepare(ctx, in); err != nil {
			return fail(err)
		}
	}

	out, err := m.do(ctx, token, in)
	if m.settled != nil {
		m.settled(ctx, in, out, err)
	}
	if err != nil {
		return fail(err)
	}

	keys := append([]querycache.Key(nil), m.invalidates...)
	if m.keysFor != nil {
		keys = append(keys, m.keysFor(in, out)...)
	}
	if len(keys) > 0 {
		m.c.cache.Invalidate(keys...)
	}
	if m.success != "" {
		m.c.notifier.Success(ctx, m.success)
	}
	if m.onSuccess != nil {
		m.onSuccess(ctx, in, out)
	}
	m.c.log.LogMutation(ctx, m.action, keyStrings(keys), nil)
	return out, nil
}
