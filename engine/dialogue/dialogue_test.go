package dialogue

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/input"
	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/engine/variables"
	"github.com/nathoo/questweave/types"
)

func text(s string) story.Node { return story.Node{Kind: story.NodeText, Text: s} }

func call(fn, arg string) story.Node {
	return story.Node{Kind: story.NodeCall, Func: fn, Args: []types.Value{types.StringValue(arg)}}
}

func testDef() *story.Def {
	return &story.Def{
		Globals: map[string]types.Value{
			"met_keeper": types.BoolValue(false),
			"boxesState": types.StringValue("CanStart"),
		},
		Knots: map[string][]story.Node{
			"greet": {text(""), text("Hello"), text("")},
			"blank": {text(""), text("   "), text("")},
			"keeper": {
				text("Dust everywhere."),
				{Kind: story.NodeSet, Var: "met_keeper", Value: types.BoolValue(true)},
				{Kind: story.NodeChoice, Text: "I'll help", Body: []story.Node{
					call("StartQuest", "boxes"),
					text("Thank you."),
				}},
				{Kind: story.NodeChoice, Text: "Not now", Body: []story.Node{text("Another time.")}},
			},
			"menu": {
				{Kind: story.NodeChoice, Text: "A", Body: []story.Node{text("Picked A.")}},
				{Kind: story.NodeChoice, Text: "B"},
			},
			"pause": {
				text(""), text("  "),
				{Kind: story.NodeChoice, Text: "Wait", Body: []story.Node{text("You wait.")}},
			},
			"box":    {text("You wipe the box clean.")},
			"reward": {call("FinishQuest", "boxes"), text("All done.")},
			"broken": {text("Hmm."), call("Explode", "now"), text("never")},
		},
	}
}

type harness struct {
	bus     *bus.Bus
	story   *story.Story
	vars    *variables.Sync
	input   *input.Tracker
	bridge  *Bridge
	display []events.DisplayDialogue
	log     []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{bus: bus.New()}
	h.story = story.New(testDef())
	h.vars = variables.New(h.bus, h.story, logger)
	h.input = input.NewTracker(h.bus)
	h.bridge = NewBridge(h.bus, h.story, h.vars, h.input, logger)

	bus.Subscribe(h.bus, events.DialogueStartedTopic, func(e events.DialogueStarted) {
		h.log = append(h.log, "started:"+e.Knot)
	})
	bus.Subscribe(h.bus, events.DialogueFinishedTopic, func(e events.DialogueFinished) {
		h.log = append(h.log, "finished:"+e.Knot)
	})
	bus.Subscribe(h.bus, events.DisplayDialogueTopic, func(e events.DisplayDialogue) {
		h.display = append(h.display, e)
		h.log = append(h.log, "display:"+e.Line)
	})
	return h
}

func (h *harness) lines() []string {
	var out []string
	for _, d := range h.display {
		out = append(out, d.Line)
	}
	return out
}

type box struct {
	consumable bool
	cleaned    int
	log        *[]string
}

func (b *box) ObjectID() string { return "box1" }
func (b *box) Consumable() bool { return b.consumable }
func (b *box) Cleanup() {
	b.cleaned++
	if b.log != nil {
		*b.log = append(*b.log, "cleanup")
	}
}

func TestBlankLinesSkipped(t *testing.T) {
	h := newHarness(t)

	h.bridge.Enter("greet", nil)
	if !reflect.DeepEqual(h.lines(), []string{"Hello"}) {
		t.Fatalf("displayed = %q", h.lines())
	}
	if h.input.Context() != types.Dialogue {
		t.Fatalf("context = %v, want Dialogue", h.input.Context())
	}

	h.input.Submit()

	want := []string{"started:greet", "display:Hello", "finished:greet"}
	if !reflect.DeepEqual(h.log, want) {
		t.Errorf("log = %v, want %v", h.log, want)
	}
	if h.bridge.Playing() {
		t.Error("session should have ended")
	}
	if h.input.Context() != types.Default {
		t.Errorf("context = %v, want Default", h.input.Context())
	}
}

func TestBusyEnterIgnored(t *testing.T) {
	h := newHarness(t)

	h.bridge.Enter("greet", nil)
	bus.Publish(h.bus, events.EnterDialogueTopic, events.EnterDialogue{Knot: "keeper"})

	started := 0
	for _, e := range h.log {
		if e == "started:greet" || e == "started:keeper" {
			started++
		}
	}
	if started != 1 {
		t.Errorf("started events = %d, want 1 (log %v)", started, h.log)
	}
	if s, _ := h.bridge.Session(); s.Knot != "greet" {
		t.Errorf("active knot = %q", s.Knot)
	}
}

func TestDefaultSubmitDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("greet", nil)

	bus.Publish(h.bus, events.SubmitPressedTopic, events.SubmitPressed{Context: types.Default})

	if !h.bridge.Playing() {
		t.Fatal("default-context submit ended the session")
	}
	if len(h.display) != 1 {
		t.Errorf("display events = %d, want 1", len(h.display))
	}
}

func TestBlankOnlyKnotEndsImmediately(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("blank", nil)

	want := []string{"started:blank", "finished:blank"}
	if !reflect.DeepEqual(h.log, want) {
		t.Errorf("log = %v, want %v", h.log, want)
	}
	if h.input.Context() != types.Default {
		t.Errorf("context = %v", h.input.Context())
	}
}

func TestEmptyKnotStartsNothing(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("", nil)
	if h.bridge.Playing() || len(h.log) != 0 {
		t.Errorf("empty knot started a session: %v", h.log)
	}
}

func TestUnknownKnotEndsSession(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("nowhere", nil)
	if h.bridge.Playing() {
		t.Error("session still playing")
	}
	if h.input.Context() != types.Default {
		t.Errorf("context = %v", h.input.Context())
	}
}

func TestScriptFaultEndsSession(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("broken", nil)

	if h.bridge.Playing() {
		t.Error("session should end on an unbound function")
	}
	want := []string{"started:broken", "finished:broken"}
	if !reflect.DeepEqual(h.log, want) {
		t.Errorf("log = %v", h.log)
	}
}

func TestChoices(t *testing.T) {
	h := newHarness(t)
	var quests []string
	bus.Subscribe(h.bus, events.StartQuestTopic, func(e events.QuestRequest) { quests = append(quests, e.ID) })

	h.bridge.Enter("keeper", nil)
	last := h.display[len(h.display)-1]
	if last.Line != "Dust everywhere." || len(last.Choices) != 2 {
		t.Fatalf("display = %+v", last)
	}
	if v, _ := h.vars.Variable("met_keeper"); !v.Bool {
		t.Error("script assignment not mirrored")
	}

	// No selection: submit keeps the choice point.
	h.input.Submit()
	if !h.bridge.Playing() || len(h.display) != 1 {
		t.Fatalf("submit without selection moved on: %v", h.log)
	}

	h.input.SelectChoice(7)
	if s, _ := h.bridge.Session(); s.ChoiceIndex != -1 {
		t.Fatalf("out-of-range index recorded: %d", s.ChoiceIndex)
	}

	h.input.SelectChoice(0)
	h.input.Submit()
	if got := h.display[len(h.display)-1].Line; got != "Thank you." {
		t.Errorf("line after choice = %q", got)
	}
	if !reflect.DeepEqual(quests, []string{"boxes"}) {
		t.Errorf("StartQuest published %v", quests)
	}

	h.input.Submit()
	if h.bridge.Playing() {
		t.Error("session should end after the last line")
	}
}

func TestChoiceIndexCleared(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("keeper", nil)
	h.input.SelectChoice(1)
	h.input.SelectChoice(-1)
	h.input.Submit()
	if len(h.display) != 1 {
		t.Errorf("cleared selection still committed: %v", h.lines())
	}
}

func TestKnotOpeningOnChoices(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("menu", nil)
	if len(h.display) != 1 || h.display[0].Line != "" || len(h.display[0].Choices) != 2 {
		t.Fatalf("display = %+v", h.display)
	}

	h.input.SelectChoice(1)
	h.input.Submit()
	if h.bridge.Playing() {
		t.Error("empty choice body should end the session")
	}
}

func TestBlankLinesBeforeChoicesKeepChoices(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("pause", nil)

	if !h.bridge.Playing() {
		t.Fatal("session ended with choices pending")
	}
	if len(h.display) != 1 || len(h.display[0].Choices) != 1 || h.display[0].Choices[0].Text != "Wait" {
		t.Fatalf("display = %+v", h.display)
	}
}

func TestConsumableCleanupBeforeFinished(t *testing.T) {
	h := newHarness(t)
	src := &box{consumable: true, log: &h.log}

	bus.Publish(h.bus, events.EnterDialogueTopic, events.EnterDialogue{Knot: "box", Source: src})
	h.input.Submit()

	if src.cleaned != 1 {
		t.Fatalf("cleanup calls = %d", src.cleaned)
	}
	want := []string{"started:box", "display:You wipe the box clean.", "cleanup", "finished:box"}
	if !reflect.DeepEqual(h.log, want) {
		t.Errorf("log = %v, want %v", h.log, want)
	}
}

func TestNonConsumableNotCleaned(t *testing.T) {
	h := newHarness(t)
	src := &box{}
	h.bridge.Enter("box", src)
	h.input.Submit()
	if src.cleaned != 0 {
		t.Errorf("non-consumable cleaned %d times", src.cleaned)
	}
}

func TestFinishQuestDeferredToSessionEnd(t *testing.T) {
	h := newHarness(t)
	bus.Subscribe(h.bus, events.FinishQuestTopic, func(e events.QuestRequest) {
		h.log = append(h.log, "finishQuest:"+e.ID+":"+h.input.Context().String())
	})

	h.bridge.Enter("reward", nil)
	if s, _ := h.bridge.Session(); !reflect.DeepEqual(s.PendingFinish, []string{"boxes"}) {
		t.Fatalf("pending = %v", s.PendingFinish)
	}
	h.input.Submit()

	want := []string{"started:reward", "display:All done.", "finished:reward", "finishQuest:boxes:Default"}
	if !reflect.DeepEqual(h.log, want) {
		t.Errorf("log = %v, want %v", h.log, want)
	}
}

func TestSessionEndResetsStory(t *testing.T) {
	h := newHarness(t)
	h.bridge.Enter("keeper", nil)
	h.input.SelectChoice(1)
	h.input.Submit()
	h.input.Submit()

	if h.bridge.Playing() {
		t.Fatal("session still playing")
	}
	if h.vars.Listening() {
		t.Error("variable layer still listening")
	}
	if v, _ := h.story.Variable("met_keeper"); v.Bool {
		t.Error("story globals not reset")
	}
	if v, _ := h.vars.Variable("met_keeper"); !v.Bool {
		t.Error("mirror lost the session's assignment")
	}

	// The next session sees the mirrored value again.
	h.bridge.Enter("greet", nil)
	if v, _ := h.story.Variable("met_keeper"); !v.Bool {
		t.Error("mirror not pushed into the next session")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	h := newHarness(t)
	var ids []string
	bus.Subscribe(h.bus, events.DialogueStartedTopic, func(e events.DialogueStarted) { ids = append(ids, e.SessionID) })

	for i := 0; i < 2; i++ {
		h.bridge.Enter("greet", nil)
		h.input.Submit()
	}
	if len(ids) != 2 || ids[0] == ids[1] || ids[0] == "" {
		t.Errorf("session ids = %v", ids)
	}
}

func TestChoiceIndexIgnoredWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.input.SelectChoice(0)
	h.input.Submit()
	if h.bridge.Playing() || len(h.log) != 0 {
		t.Errorf("events without a session: %v", h.log)
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.bridge.Close()
	bus.Publish(h.bus, events.EnterDialogueTopic, events.EnterDialogue{Knot: "greet"})
	if h.bridge.Playing() {
		t.Error("closed bridge still handles enter")
	}
}

func TestEnterFromFinishedHandlerStartsAfterTeardown(t *testing.T) {
	h := newHarness(t)
	chained := false
	bus.Subscribe(h.bus, events.DialogueFinishedTopic, func(e events.DialogueFinished) {
		if !chained {
			chained = true
			h.bridge.Enter("box", nil)
		}
	})

	h.bridge.Enter("greet", nil)
	h.input.Submit()

	s, ok := h.bridge.Session()
	if !ok || s.Knot != "box" {
		t.Fatalf("session = %+v, %v; want knot box", s, ok)
	}
	if h.input.Context() != types.Dialogue {
		t.Errorf("context = %v, want Dialogue", h.input.Context())
	}
	if !h.vars.Listening() {
		t.Error("variable sync stopped for the chained session")
	}
	if got := h.lines(); got[len(got)-1] != "You wipe the box clean." {
		t.Errorf("displayed = %q", got)
	}
}
