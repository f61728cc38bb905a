// Package hooks layers the extensibility pipeline over the raw adapter:
// before-hooks can rewrite or veto a mutation, after-hooks observe the
// written row. Hooks are configuration supplied at initialization — the
// pipeline runs them in registration order and never reorders or
// deduplicates.
package hooks

import (
	"context"
	"log"

	"koroflow/internal/database"
)

// Outcome is the tagged result of a before-hook: either proceed with a
// (possibly rewritten) payload or reject the mutation. Hooks receive the
// payload as input and hand back a fresh one; they do not mutate shared
// state.
type Outcome struct {
	proceed bool
	payload database.Row
}

// Proceed continues the pipeline with the given payload.
func Proceed(payload database.Row) Outcome {
	return Outcome{proceed: true, payload: payload}
}

// Reject cancels the mutation. The pipeline returns a nil row and nil
// error; callers must treat that as "rejected by policy", distinct from a
// failure.
func Reject() Outcome {
	return Outcome{}
}

// BeforeFunc runs before the adapter call. Returning an error aborts the
// pipeline with that error; returning Reject() cancels it silently.
type BeforeFunc func(ctx context.Context, payload database.Row) (Outcome, error)

// AfterFunc runs after a successful adapter call, for side effects only;
// its observations never alter the result.
type AfterFunc func(ctx context.Context, row database.Row)

// Hook is one registered extension.
type Hook struct {
	Before BeforeFunc
	After  AfterFunc
}

// Pipeline wraps an adapter with per-entity hook chains.
type Pipeline struct {
	adapter database.Adapter
	hooks   map[string][]Hook
	log     *log.Logger
}

func New(adapter database.Adapter, logger *log.Logger) *Pipeline {
	return &Pipeline{
		adapter: adapter,
		hooks:   make(map[string][]Hook),
		log:     logger,
	}
}

// Register appends a hook to the entity's chain. Order of registration is
// order of execution; duplicates are the caller's business.
func (p *Pipeline) Register(model string, hook Hook) {
	p.hooks[model] = append(p.hooks[model], hook)
}

// Adapter exposes the underlying adapter for read paths, which bypass hooks.
func (p *Pipeline) Adapter() database.Adapter { return p.adapter }

// WithAdapter returns a pipeline over a different adapter sharing the same
// hook chains, used to rebind hooks to a transaction-scoped adapter.
func (p *Pipeline) WithAdapter(adapter database.Adapter) *Pipeline {
	return &Pipeline{adapter: adapter, hooks: p.hooks, log: p.log}
}

// CreateWithHooks runs before-hooks, the adapter create, then after-hooks.
// A veto from any before-hook stops the chain: later hooks do not run, the
// adapter is never called, and the result is (nil, nil).
func (p *Pipeline) CreateWithHooks(ctx context.Context, model string, data database.Row, selected []string) (database.Row, error) {
	payload, ok, err := p.runBefore(ctx, model, data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	row, err := p.adapter.Create(ctx, model, payload, selected)
	if err != nil {
		return nil, err
	}
	p.runAfter(ctx, model, row)
	return row, nil
}

// UpdateWithHooks mirrors CreateWithHooks for updates, additionally carrying
// the where clause through to the adapter.
func (p *Pipeline) UpdateWithHooks(ctx context.Context, model string, where database.Where, change database.Row) (database.Row, error) {
	payload, ok, err := p.runBefore(ctx, model, change)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	row, err := p.adapter.Update(ctx, model, where, payload)
	if err != nil {
		return nil, err
	}
	p.runAfter(ctx, model, row)
	return row, nil
}

// UpdateManyWithHooks applies the same chain to bulk updates. A nil row
// slice cannot carry the veto signal here, since zero matched rows is a
// legitimate success, so the second return reports whether the mutation
// proceeded.
func (p *Pipeline) UpdateManyWithHooks(ctx context.Context, model string, where database.Where, change database.Row) ([]database.Row, bool, error) {
	payload, ok, err := p.runBefore(ctx, model, change)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	rows, err := p.adapter.UpdateMany(ctx, model, where, payload)
	if err != nil {
		return nil, false, err
	}
	for _, row := range rows {
		p.runAfter(ctx, model, row)
	}
	return rows, true, nil
}

func (p *Pipeline) runBefore(ctx context.Context, model string, payload database.Row) (database.Row, bool, error) {
	for _, hook := range p.hooks[model] {
		if hook.Before == nil {
			continue
		}
		outcome, err := hook.Before(ctx, payload)
		if err != nil {
			return nil, false, err
		}
		if !outcome.proceed {
			if p.log != nil {
				p.log.Printf("hook vetoed %s mutation", model)
			}
			return nil, false, nil
		}
		payload = outcome.payload
	}
	return payload, true, nil
}

func (p *Pipeline) runAfter(ctx context.Context, model string, row database.Row) {
	for _, hook := range p.hooks[model] {
		if hook.After == nil {
			continue
		}
		hook.After(ctx, row)
	}
}
