// Package input tracks the active input context and tags submit actions
// with it, so one physical confirm never drives both world interaction and
// dialogue at once.
package input

import (
	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/types"
)

// Tracker holds the single process-wide input context.
type Tracker struct {
	bus *bus.Bus
	ctx types.InputContext
}

// NewTracker starts in the Default context.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{bus: b, ctx: types.Default}
}

// Context returns the current input context.
func (t *Tracker) Context() types.InputContext {
	return t.ctx
}

// Set switches the context. Only the dialogue bridge calls this, on session
// start and end.
func (t *Tracker) Set(ctx types.InputContext) {
	if ctx == t.ctx {
		return
	}
	from := t.ctx
	t.ctx = ctx
	bus.Publish(t.bus, events.InputContextChangedTopic, events.InputContextChanged{From: from, To: ctx})
}

// Submit publishes a submit action tagged with the current context.
func (t *Tracker) Submit() {
	bus.Publish(t.bus, events.SubmitPressedTopic, events.SubmitPressed{Context: t.ctx})
}

// SelectChoice forwards a choice highlight from an input source.
func (t *Tracker) SelectChoice(index int) {
	bus.Publish(t.bus, events.ChoiceIndexUpdatedTopic, events.ChoiceIndexUpdated{Index: index})
}
