package variables

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStory() *story.Story {
	return story.New(&story.Def{
		Globals: map[string]types.Value{
			"met_keeper": types.BoolValue(false),
			"boxesState": types.StringValue("RequirementsNotMet"),
		},
		Knots: map[string][]story.Node{
			"meet": {
				{Kind: story.NodeSet, Var: "met_keeper", Value: types.BoolValue(true)},
				{Kind: story.NodeSet, Var: "tmp", Value: types.IntValue(9)},
				{Kind: story.NodeText, Text: "Hello."},
			},
		},
	})
}

func TestNew_TracksDeclaredGlobals(t *testing.T) {
	st := testStory()
	s := New(bus.New(), st, testLogger())

	want := []string{"boxesState", "met_keeper"}
	if got := s.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestOnVariableChanged_IgnoresUntracked(t *testing.T) {
	st := testStory()
	s := New(bus.New(), st, testLogger())
	s.SyncAndListen(st)

	_ = st.ChoosePath("meet")
	if _, err := st.Continue(); err != nil {
		t.Fatal(err)
	}

	if v, _ := s.Variable("met_keeper"); !v.Bool {
		t.Error("met_keeper should be mirrored as true")
	}
	if _, ok := s.Variable("tmp"); ok {
		t.Error("script temporary must not be tracked")
	}
}

func TestSyncAndListen_PushesMirror(t *testing.T) {
	st := testStory()
	s := New(bus.New(), st, testLogger())
	s.Set("met_keeper", types.BoolValue(true))

	st.ResetState()
	s.SyncAndListen(st)

	if v, _ := st.Variable("met_keeper"); !v.Bool {
		t.Error("mirror value should be pushed into the story")
	}
}

func TestSyncAndListen_SkipsUndeclared(t *testing.T) {
	full := testStory()
	s := New(bus.New(), full, testLogger())

	narrow := story.New(&story.Def{
		Globals: map[string]types.Value{"met_keeper": types.BoolValue(false)},
		Knots:   map[string][]story.Node{},
	})
	s.SyncAndListen(narrow)

	if _, ok := narrow.Variable("boxesState"); ok {
		t.Error("variable unknown to the story appeared after sync")
	}
	if !reflect.DeepEqual(narrow.VariableNames(), []string{"met_keeper"}) {
		t.Errorf("story variables = %v", narrow.VariableNames())
	}
}

func TestStopListening(t *testing.T) {
	st := testStory()
	s := New(bus.New(), st, testLogger())
	s.SyncAndListen(st)
	s.StopListening()
	s.StopListening()

	if s.Listening() {
		t.Fatal("still listening")
	}
	_ = st.ChoosePath("meet")
	_, _ = st.Continue()
	if v, _ := s.Variable("met_keeper"); v.Bool {
		t.Error("change after StopListening reached the mirror")
	}
}

func TestQuestStateChanged_PushedIntoStory(t *testing.T) {
	b := bus.New()
	st := testStory()
	s := New(b, st, testLogger())
	s.SyncAndListen(st)

	bus.Publish(b, events.QuestStateChangedTopic, events.QuestStateChanged{
		ID: "boxes", From: types.CanStart, State: types.InProgress,
	})

	if v, _ := s.Variable("boxesState"); v.Str != "InProgress" {
		t.Errorf("mirror boxesState = %q", v.Str)
	}
	if v, _ := st.Variable("boxesState"); v.Str != "InProgress" {
		t.Errorf("story boxesState = %q, want pushed in the same step", v.Str)
	}

	bus.Publish(b, events.QuestStateChangedTopic, events.QuestStateChanged{ID: "ghost", State: types.Finished})
	if _, ok := s.Variable("ghostState"); ok {
		t.Error("undeclared quest variable was tracked")
	}
}

func TestSnapshotRestore(t *testing.T) {
	st := testStory()
	s := New(bus.New(), st, testLogger())
	s.Set("met_keeper", types.BoolValue(true))
	snap := s.Snapshot()

	s2 := New(bus.New(), testStory(), testLogger())
	snap["bogus"] = types.IntValue(1)
	s2.Restore(snap)

	if v, _ := s2.Variable("met_keeper"); !v.Bool {
		t.Error("restore lost met_keeper")
	}
	if _, ok := s2.Variable("bogus"); ok {
		t.Error("restore added an untracked variable")
	}
}

func TestClose_Unsubscribes(t *testing.T) {
	b := bus.New()
	s := New(b, testStory(), testLogger())
	s.Close()
	if n := b.HandlerCount(events.QuestStateChangedTopic.Name()); n != 0 {
		t.Errorf("handlers after Close = %d", n)
	}
}
