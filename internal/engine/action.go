package engine

import (
	"context"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/state"
)

// Operation is a wrapped install/uninstall/update action. It receives the
// action options as persisted for the surface.
type Operation func(ctx context.Context, opts state.ActionOptions) error

// ExecuteAction brackets op with the action latch. While op runs the surface
// is disabled and every refresh trigger is deferred. Cleanup always runs,
// even when op fails or panics: the latch returns to Idle, the installed
// snapshot is invalidated, the surface is re-enabled and, if any trigger
// arrived meanwhile, exactly one refresh runs before ExecuteAction returns.
//
// setOptions, if non-nil, updates the persisted action options before op
// starts. A second action while one is running fails with ACTION_IN_PROGRESS.
func (e *Engine) ExecuteAction(ctx context.Context, action string, op Operation, setOptions func(*state.ActionOptions)) (err error) {
	// Latch transitions must not be abandoned half way, so they ignore ctx
	// cancellation.
	bg := context.WithoutCancel(ctx)

	var began bool
	var opts state.ActionOptions
	if err := e.mb.call(bg, func() {
		if !e.st.action.begin() {
			return
		}
		began = true
		e.store.ApplyUpdate(store.Update{Type: store.UpdateEnabled, Source: "action", Payload: false})
		if setOptions != nil {
			setOptions(&e.st.options)
			e.saveSettings()
		}
		opts = e.st.options
	}); err != nil {
		return err
	}
	if !began {
		return pverrors.ActionInProgress()
	}

	e.logger.WithField("action", action).Info("Executing action")
	defer func() {
		r := recover()
		e.endAction(ctx, bg)
		if r != nil {
			panic(r)
		}
	}()

	if err := op(ctx, opts); err != nil {
		return pverrors.ActionFailed(action, err)
	}
	return nil
}

// endAction leaves the latch and runs the deferred refresh, if one was
// requested, waiting for its outcome unless ctx ends first.
func (e *Engine) endAction(ctx, bg context.Context) {
	var deferred <-chan Outcome
	if err := e.mb.call(bg, func() {
		refresh := e.st.action.end()
		e.installed.invalidate()
		e.store.ApplyUpdate(store.Update{Type: store.UpdateEnabled, Source: "action", Payload: true})
		if !refresh {
			return
		}
		reply := make(chan Outcome, 1)
		deferred = reply
		t := Trigger{Kind: ActionsExecuted, deferred: true, Elapsed: e.st.clock.Elapsed()}
		if !e.st.visible {
			e.st.dirtyWhileHidden = true
			e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "hidden"}, reply)
			return
		}
		e.refresh(t, reply)
	}); err != nil {
		e.logger.WithError(err).Warn("Action cleanup could not reach the engine")
		return
	}
	if deferred == nil {
		return
	}
	select {
	case <-deferred:
	case <-ctx.Done():
	}
}
