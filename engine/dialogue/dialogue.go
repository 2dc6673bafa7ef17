// Package dialogue is the bridge between the narrative script runtime and
// the bus. It owns the dialogue session lifecycle: it starts sessions on
// request, advances them on dialogue-context submits, publishes lines and
// choices for display, and tears everything down when the script is done.
package dialogue

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/engine/variables"
	"github.com/nathoo/questweave/types"
)

// Story is the interpreter surface the bridge drives.
type Story interface {
	variables.Store
	ChoosePath(knot string) error
	CanContinue() bool
	Continue() (string, error)
	CurrentChoices() []types.Choice
	ChooseChoiceIndex(i int) error
	BindExternalFunction(name string, fn story.ExternalFunc)
	UnbindExternalFunction(name string)
	ResetState()
}

// Vars is the variable layer as the bridge uses it.
type Vars interface {
	SyncAndListen(store variables.Store)
	StopListening()
}

// Input is the input context switch.
type Input interface {
	Set(ctx types.InputContext)
}

// Script-callable functions bound on every bridge.
const (
	FuncStartQuest   = "StartQuest"
	FuncAdvanceQuest = "AdvanceQuest"
	FuncFinishQuest  = "FinishQuest"
)

// Session is one dialogue run from enter to end.
type Session struct {
	ID          string
	Knot        string
	Source      events.Source
	ChoiceIndex int // -1 when nothing is selected
	// PendingFinish holds quests the script asked to finish; they are
	// finished once the session has ended.
	PendingFinish []string

	Line      string
	Choices   []types.Choice
	displayed bool
}

// Bridge runs at most one dialogue session at a time.
type Bridge struct {
	bus   *bus.Bus
	log   *slog.Logger
	story Story
	vars  Vars
	input Input

	session *Session
	subs    []bus.Subscription

	// Set while end runs; an Enter from a DialogueFinished or finish-quest
	// handler is held in next and started once teardown completes.
	ending bool
	next   *pendingEnter
}

type pendingEnter struct {
	knot string
	src  events.Source
}

// NewBridge binds the quest functions into st and subscribes to the enter,
// submit and choice index topics.
func NewBridge(b *bus.Bus, st Story, vars Vars, in Input, log *slog.Logger) *Bridge {
	br := &Bridge{bus: b, log: log, story: st, vars: vars, input: in}

	st.BindExternalFunction(FuncStartQuest, br.questCall(FuncStartQuest, func(id string) {
		bus.Publish(b, events.StartQuestTopic, events.QuestRequest{ID: id})
	}))
	st.BindExternalFunction(FuncAdvanceQuest, br.questCall(FuncAdvanceQuest, func(id string) {
		bus.Publish(b, events.AdvanceQuestTopic, events.QuestRequest{ID: id})
	}))
	st.BindExternalFunction(FuncFinishQuest, br.questCall(FuncFinishQuest, func(id string) {
		br.session.PendingFinish = append(br.session.PendingFinish, id)
	}))

	br.subs = append(br.subs,
		bus.Subscribe(b, events.EnterDialogueTopic, func(e events.EnterDialogue) { br.Enter(e.Knot, e.Source) }),
		bus.Subscribe(b, events.SubmitPressedTopic, br.onSubmit),
		bus.Subscribe(b, events.ChoiceIndexUpdatedTopic, br.onChoiceIndex),
	)
	return br
}

// Close unsubscribes and unbinds the quest functions. An active session is
// left as is.
func (br *Bridge) Close() {
	for _, s := range br.subs {
		br.bus.Unsubscribe(s)
	}
	br.subs = nil
	for _, name := range []string{FuncStartQuest, FuncAdvanceQuest, FuncFinishQuest} {
		br.story.UnbindExternalFunction(name)
	}
}

// Playing reports whether a session is active.
func (br *Bridge) Playing() bool {
	return br.session != nil
}

// Session returns a copy of the active session.
func (br *Bridge) Session() (Session, bool) {
	if br.session == nil {
		return Session{}, false
	}
	return *br.session, true
}

// Enter starts a session at knot. src is the world object the session was
// opened from, or nil. While a session is playing, Enter does nothing.
func (br *Bridge) Enter(knot string, src events.Source) {
	if br.ending {
		if br.next == nil {
			br.next = &pendingEnter{knot: knot, src: src}
			br.log.Debug("dialogue ending, enter deferred", "knot", knot)
		}
		return
	}
	if br.session != nil {
		br.log.Debug("dialogue busy, enter ignored", "knot", knot, "active", br.session.Knot)
		return
	}
	if knot == "" {
		br.log.Warn("enter dialogue with empty knot")
		return
	}

	br.session = &Session{
		ID:          uuid.NewString(),
		Knot:        knot,
		Source:      src,
		ChoiceIndex: -1,
	}
	br.log.Info("dialogue started", "session", br.session.ID, "knot", knot)
	bus.Publish(br.bus, events.DialogueStartedTopic, events.DialogueStarted{
		SessionID: br.session.ID, Knot: knot,
	})
	br.input.Set(types.Dialogue)

	if err := br.story.ChoosePath(knot); err != nil {
		br.log.Error("enter dialogue", "knot", knot, "error", err)
		br.end()
		return
	}
	br.vars.SyncAndListen(br.story)
	br.advance()
}

func (br *Bridge) onSubmit(e events.SubmitPressed) {
	if e.Context != types.Dialogue || br.session == nil {
		return
	}
	br.advance()
}

func (br *Bridge) onChoiceIndex(e events.ChoiceIndexUpdated) {
	if br.session == nil {
		return
	}
	if e.Index == -1 {
		br.session.ChoiceIndex = -1
		return
	}
	if n := len(br.story.CurrentChoices()); e.Index < 0 || e.Index >= n {
		br.log.Warn("choice index out of range", "index", e.Index, "choices", n)
		return
	}
	br.session.ChoiceIndex = e.Index
}

// advance moves the script forward by one displayed line.
func (br *Bridge) advance() {
	s := br.session

	if len(br.story.CurrentChoices()) > 0 && s.ChoiceIndex != -1 {
		idx := s.ChoiceIndex
		s.ChoiceIndex = -1
		if err := br.story.ChooseChoiceIndex(idx); err != nil {
			br.log.Warn("commit choice", "index", idx, "error", err)
			return
		}
	}

	if br.story.CanContinue() {
		var line string
		for br.story.CanContinue() {
			next, err := br.story.Continue()
			if err != nil {
				br.log.Error("dialogue script fault", "session", s.ID, "knot", s.Knot, "error", err)
				br.end()
				return
			}
			line = next
			if strings.TrimSpace(line) != "" {
				break
			}
		}
		choices := br.story.CurrentChoices()
		if strings.TrimSpace(line) == "" && len(choices) == 0 {
			br.end()
			return
		}
		br.display(line, choices)
		return
	}

	choices := br.story.CurrentChoices()
	switch {
	case len(choices) == 0:
		br.end()
	case !s.displayed:
		// Knot opens directly on a choice point.
		br.display("", choices)
	default:
		br.log.Debug("submit without a selected choice", "session", s.ID)
	}
}

func (br *Bridge) display(line string, choices []types.Choice) {
	s := br.session
	s.Line, s.Choices, s.displayed = line, choices, true
	bus.Publish(br.bus, events.DisplayDialogueTopic, events.DisplayDialogue{Line: line, Choices: choices})
}

// end tears the session down. Order matters: the consumable source is
// cleaned before anyone hears the session finished, and deferred quest
// finishes run with the input already back in Default. Only the first
// Enter requested during teardown is kept; it starts after the reset.
func (br *Bridge) end() {
	s := br.session
	if s == nil {
		return
	}
	br.ending = true
	if s.Source != nil && s.Source.Consumable() {
		s.Source.Cleanup()
	}

	br.session = nil
	br.log.Info("dialogue finished", "session", s.ID, "knot", s.Knot)
	bus.Publish(br.bus, events.DialogueFinishedTopic, events.DialogueFinished{SessionID: s.ID, Knot: s.Knot})
	br.input.Set(types.Default)

	for _, id := range s.PendingFinish {
		bus.Publish(br.bus, events.FinishQuestTopic, events.QuestRequest{ID: id})
	}

	br.vars.StopListening()
	br.story.ResetState()
	br.ending = false

	if next := br.next; next != nil {
		br.next = nil
		br.Enter(next.knot, next.src)
	}
}

// questCall adapts a quest request into a script function taking one
// string argument.
func (br *Bridge) questCall(name string, fn func(id string)) story.ExternalFunc {
	return func(args []types.Value) error {
		if len(args) != 1 || args[0].Kind != types.KindString {
			return fmt.Errorf("%s: want one quest id, got %d args", name, len(args))
		}
		if br.session == nil {
			return fmt.Errorf("%s: no dialogue session", name)
		}
		fn(args[0].Str)
		return nil
	}
}
