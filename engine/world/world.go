// Package world holds the interactable objects of the hub. Approaching an
// object focuses it; a Default-context submit on the focused object opens
// its dialogue.
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/rules"
	"github.com/nathoo/questweave/engine/tasks"
	"github.com/nathoo/questweave/types"
)

// ErrNotReady is returned when approaching an object whose requirements do
// not hold yet.
var ErrNotReady = errors.New("not available yet")

// Object is a world object. It is the dialogue source for sessions opened
// from it.
type Object struct {
	def      types.ObjectDef
	consumed bool
	world    *World
}

func (o *Object) ObjectID() string { return o.def.ID }

func (o *Object) Consumable() bool { return o.def.Consumable }

// Cleanup consumes the object: its tasks are cancelled, focus moves away
// and an ObjectCleaned event is published. Repeat calls do nothing.
func (o *Object) Cleanup() {
	if o.consumed {
		return
	}
	o.consumed = true
	w := o.world
	if n := w.sched.Cancel(o.def.ID); n > 0 {
		w.log.Debug("object tasks cancelled", "object", o.def.ID, "count", n)
	}
	if w.focus == o.def.ID {
		w.setFocus("")
	}
	w.log.Info("object cleaned", "object", o.def.ID, "kind", o.def.Kind)
	bus.Publish(w.bus, events.ObjectCleanedTopic, events.ObjectCleaned{ObjectID: o.def.ID, Kind: o.def.Kind})
}

// Def returns the object's definition.
func (o *Object) Def() types.ObjectDef { return o.def }

// Consumed reports whether the object has been cleaned up.
func (o *Object) Consumed() bool { return o.consumed }

// World is the set of objects plus the player's current focus.
type World struct {
	bus   *bus.Bus
	log   *slog.Logger
	sched *tasks.Scheduler
	env   rules.Env

	objects map[string]*Object
	order   []string
	focus   string
	sub     bus.Subscription
}

// New builds the world and starts listening for Default-context submits.
// Object requirements are evaluated against env; a nil env makes every
// object available.
func New(b *bus.Bus, defs []types.ObjectDef, sched *tasks.Scheduler, env rules.Env, log *slog.Logger) *World {
	w := &World{
		bus:     b,
		log:     log,
		sched:   sched,
		env:     env,
		objects: make(map[string]*Object, len(defs)),
	}
	for _, def := range defs {
		if _, dup := w.objects[def.ID]; dup {
			log.Warn("duplicate object ignored", "object", def.ID)
			continue
		}
		w.objects[def.ID] = &Object{def: def, world: w}
		w.order = append(w.order, def.ID)
	}
	w.sub = bus.Subscribe(b, events.SubmitPressedTopic, w.onSubmit)
	return w
}

// Close stops listening for submits.
func (w *World) Close() {
	w.bus.Unsubscribe(w.sub)
}

// Approach focuses object id. Consumed and unknown objects cannot be
// focused.
func (w *World) Approach(id string) error {
	o, ok := w.objects[id]
	if !ok {
		return fmt.Errorf("approach %q: no such object", id)
	}
	if o.consumed {
		return fmt.Errorf("approach %q: already cleaned up", id)
	}
	if !w.ready(o) {
		return fmt.Errorf("approach %q: %w", id, ErrNotReady)
	}
	w.setFocus(id)
	return nil
}

// Leave clears the focus.
func (w *World) Leave() {
	w.setFocus("")
}

// Focused returns the focused object, if any.
func (w *World) Focused() (*Object, bool) {
	if w.focus == "" {
		return nil, false
	}
	return w.objects[w.focus], true
}

// Object looks an object up by id.
func (w *World) Object(id string) (*Object, bool) {
	o, ok := w.objects[id]
	return o, ok
}

// Available returns the objects that have not been consumed and whose
// requirements hold, in definition order.
func (w *World) Available() []*Object {
	var out []*Object
	for _, id := range w.order {
		if o := w.objects[id]; !o.consumed && w.ready(o) {
			out = append(out, o)
		}
	}
	return out
}

// Consumed returns the ids of consumed objects, sorted.
func (w *World) Consumed() []string {
	var ids []string
	for id, o := range w.objects {
		if o.consumed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Restore marks the given objects consumed without publishing cleanup
// events; quest progress is restored separately.
func (w *World) Restore(consumed []string) {
	for _, o := range w.objects {
		o.consumed = false
	}
	for _, id := range consumed {
		o, ok := w.objects[id]
		if !ok {
			w.log.Warn("saved object not defined", "object", id)
			continue
		}
		o.consumed = true
		w.sched.Cancel(id)
	}
	if o, ok := w.objects[w.focus]; ok && o.consumed {
		w.setFocus("")
	}
}

func (w *World) ready(o *Object) bool {
	if w.env == nil {
		return true
	}
	return rules.EvalAllConditions(o.def.Requires, w.env)
}

func (w *World) setFocus(id string) {
	if w.focus == id {
		return
	}
	w.focus = id
	bus.Publish(w.bus, events.ObjectFocusedTopic, events.ObjectFocused{ObjectID: id})
}

func (w *World) onSubmit(e events.SubmitPressed) {
	if e.Context != types.Default {
		return
	}
	o, ok := w.Focused()
	if !ok {
		w.log.Debug("submit with nothing focused")
		return
	}
	if o.def.Knot == "" {
		w.log.Debug("object has no dialogue", "object", o.def.ID)
		return
	}
	bus.Publish(w.bus, events.EnterDialogueTopic, events.EnterDialogue{Knot: o.def.Knot, Source: o})
}
