package world

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/tasks"
	"github.com/nathoo/questweave/types"
)

func testWorld(t *testing.T) (*World, *bus.Bus, *tasks.Scheduler) {
	t.Helper()
	b := bus.New()
	sched := tasks.New()
	defs := []types.ObjectDef{
		{ID: "keeper", Name: "Hub Keeper", Kind: "npc", Knot: "keeper"},
		{ID: "box1", Name: "Dusty Box", Kind: "box", Knot: "box", Consumable: true},
		{ID: "sign", Name: "Sign", Kind: "prop"},
	}
	return New(b, defs, sched, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), b, sched
}

func TestDefaultSubmitEntersDialogue(t *testing.T) {
	w, b, _ := testWorld(t)
	var entered []events.EnterDialogue
	bus.Subscribe(b, events.EnterDialogueTopic, func(e events.EnterDialogue) { entered = append(entered, e) })

	bus.Publish(b, events.SubmitPressedTopic, events.SubmitPressed{Context: types.Default})
	if len(entered) != 0 {
		t.Fatal("entered dialogue with nothing focused")
	}

	if err := w.Approach("box1"); err != nil {
		t.Fatal(err)
	}
	bus.Publish(b, events.SubmitPressedTopic, events.SubmitPressed{Context: types.Dialogue})
	bus.Publish(b, events.SubmitPressedTopic, events.SubmitPressed{Context: types.Default})

	if len(entered) != 1 {
		t.Fatalf("entered %d times, want 1", len(entered))
	}
	if entered[0].Knot != "box" || entered[0].Source.ObjectID() != "box1" || !entered[0].Source.Consumable() {
		t.Errorf("enter = %+v", entered[0])
	}
}

func TestObjectWithoutKnot(t *testing.T) {
	w, b, _ := testWorld(t)
	entered := 0
	bus.Subscribe(b, events.EnterDialogueTopic, func(events.EnterDialogue) { entered++ })

	_ = w.Approach("sign")
	bus.Publish(b, events.SubmitPressedTopic, events.SubmitPressed{Context: types.Default})
	if entered != 0 {
		t.Error("object without a knot opened dialogue")
	}
}

func TestCleanup(t *testing.T) {
	w, b, sched := testWorld(t)
	var cleaned []events.ObjectCleaned
	var focus []string
	bus.Subscribe(b, events.ObjectCleanedTopic, func(e events.ObjectCleaned) { cleaned = append(cleaned, e) })
	bus.Subscribe(b, events.ObjectFocusedTopic, func(e events.ObjectFocused) { focus = append(focus, e.ObjectID) })

	wobble := 0
	sched.Every("box1", time.Second, func() { wobble++ })
	_ = w.Approach("box1")

	o, _ := w.Object("box1")
	o.Cleanup()
	o.Cleanup()

	if !reflect.DeepEqual(cleaned, []events.ObjectCleaned{{ObjectID: "box1", Kind: "box"}}) {
		t.Errorf("cleaned = %+v", cleaned)
	}
	if !reflect.DeepEqual(focus, []string{"box1", ""}) {
		t.Errorf("focus changes = %q", focus)
	}
	sched.Tick(5 * time.Second)
	if wobble != 0 {
		t.Errorf("object task ran %d times after cleanup", wobble)
	}
	if err := w.Approach("box1"); err == nil {
		t.Error("approached a consumed object")
	}
	if got := w.Consumed(); !reflect.DeepEqual(got, []string{"box1"}) {
		t.Errorf("Consumed = %v", got)
	}
	if n := len(w.Available()); n != 2 {
		t.Errorf("Available = %d, want 2", n)
	}
}

func TestApproachUnknown(t *testing.T) {
	w, _, _ := testWorld(t)
	if err := w.Approach("ghost"); err == nil {
		t.Error("expected error")
	}
	if _, ok := w.Focused(); ok {
		t.Error("focus set for unknown object")
	}
}

func TestRestore(t *testing.T) {
	w, b, _ := testWorld(t)
	cleaned := 0
	bus.Subscribe(b, events.ObjectCleanedTopic, func(events.ObjectCleaned) { cleaned++ })
	_ = w.Approach("box1")

	w.Restore([]string{"box1", "ghost"})

	if cleaned != 0 {
		t.Error("restore published cleanup events")
	}
	if _, ok := w.Focused(); ok {
		t.Error("focus kept on a consumed object")
	}
	if o, _ := w.Object("box1"); !o.Consumed() {
		t.Error("box1 not consumed")
	}

	w.Restore(nil)
	if o, _ := w.Object("box1"); o.Consumed() {
		t.Error("restore of an empty set left box1 consumed")
	}
}

type questEnv map[string]types.QuestState

func (e questEnv) Variable(string) (types.Value, bool) { return types.Value{}, false }

func (e questEnv) QuestState(id string) (types.QuestState, bool) {
	s, ok := e[id]
	return s, ok
}

func TestRequirementsGateApproach(t *testing.T) {
	env := questEnv{"boxes": types.CanStart}
	defs := []types.ObjectDef{
		{ID: "box1", Kind: "box", Knot: "box", Consumable: true, Requires: []types.Condition{
			{Type: "quest_state", Params: map[string]any{"quest": "boxes", "state": "InProgress"}},
		}},
		{ID: "keeper", Kind: "npc", Knot: "keeper"},
	}
	w := New(bus.New(), defs, tasks.New(), env, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := w.Approach("box1"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Approach err = %v, want ErrNotReady", err)
	}
	if got := len(w.Available()); got != 1 {
		t.Errorf("Available = %d, want 1", got)
	}

	env["boxes"] = types.InProgress
	if err := w.Approach("box1"); err != nil {
		t.Fatalf("Approach after start: %v", err)
	}
	if got := len(w.Available()); got != 2 {
		t.Errorf("Available = %d, want 2", got)
	}
}
