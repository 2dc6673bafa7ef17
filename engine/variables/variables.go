// Package variables keeps the game-side mirror of the story's global
// variables and moves values across in both directions.
package variables

import (
	"log/slog"
	"sort"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/types"
)

// Store is the interpreter-side variable state.
type Store interface {
	VariableNames() []string
	Variable(name string) (types.Value, bool)
	SetVariable(name string, v types.Value) error
	ObserveVariables(fn func(name string, v types.Value)) (cancel func())
}

// Sync mirrors every global variable the story declared at construction.
// The tracked set never grows: script temporaries and unknown names are
// ignored.
type Sync struct {
	bus *bus.Bus
	log *slog.Logger

	vars     map[string]types.Value
	store    Store
	cancel   func()
	questSub bus.Subscription
}

// New snapshots every global variable store declares and starts mirroring
// quest state changes into "<questId>State" variables.
func New(b *bus.Bus, store Store, log *slog.Logger) *Sync {
	s := &Sync{
		bus:  b,
		log:  log,
		vars: map[string]types.Value{},
	}
	for _, name := range store.VariableNames() {
		if v, ok := store.Variable(name); ok {
			s.vars[name] = v
		}
	}
	s.questSub = bus.Subscribe(b, events.QuestStateChangedTopic, s.onQuestStateChanged)
	return s
}

// Close detaches from the bus and from any store.
func (s *Sync) Close() {
	s.StopListening()
	s.bus.Unsubscribe(s.questSub)
}

// SyncAndListen pushes every tracked variable the store declares into it,
// then observes script-side changes.
func (s *Sync) SyncAndListen(store Store) {
	s.StopListening()

	declared := map[string]bool{}
	for _, name := range store.VariableNames() {
		declared[name] = true
	}
	for _, name := range s.Names() {
		if !declared[name] {
			s.log.Debug("tracked variable not declared by story", "var", name)
			continue
		}
		if err := store.SetVariable(name, s.vars[name]); err != nil {
			s.log.Warn("push variable", "var", name, "error", err)
		}
	}

	s.store = store
	s.cancel = store.ObserveVariables(s.OnVariableChanged)
}

// StopListening detaches from the store. Safe to call when not listening.
func (s *Sync) StopListening() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.store = nil
}

// Listening reports whether a store is attached.
func (s *Sync) Listening() bool {
	return s.store != nil
}

// OnVariableChanged records a script-side assignment to a tracked variable.
func (s *Sync) OnVariableChanged(name string, v types.Value) {
	if _, ok := s.vars[name]; !ok {
		return
	}
	s.vars[name] = v
}

// Set updates a tracked variable from the game side and, while listening,
// pushes it into the story in the same step. It reports whether name is
// tracked.
func (s *Sync) Set(name string, v types.Value) bool {
	if _, ok := s.vars[name]; !ok || !v.Valid() {
		return false
	}
	s.vars[name] = v
	if s.store != nil {
		if err := s.store.SetVariable(name, v); err != nil {
			s.log.Warn("push variable", "var", name, "error", err)
		}
	}
	return true
}

// Variable returns the mirrored value of name.
func (s *Sync) Variable(name string) (types.Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Names returns the tracked variable names, sorted.
func (s *Sync) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the mirror for saving.
func (s *Sync) Snapshot() map[string]types.Value {
	out := make(map[string]types.Value, len(s.vars))
	for name, v := range s.vars {
		out[name] = v
	}
	return out
}

// Restore overwrites tracked variables from a snapshot. Names that are not
// tracked are dropped.
func (s *Sync) Restore(snap map[string]types.Value) {
	for name, v := range snap {
		s.Set(name, v)
	}
}

func (s *Sync) onQuestStateChanged(e events.QuestStateChanged) {
	name := e.ID + "State"
	if !s.Set(name, types.StringValue(e.State.String())) {
		s.log.Debug("quest state variable not declared", "var", name)
	}
}
