// Package events is the catalog of bus topics and their payloads, grouped
// by concern: input, dialogue, quest and misc.
package events

import (
	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/types"
)

// Source is the world object a dialogue session was opened from.
type Source interface {
	ObjectID() string
	// Consumable reports whether the object is cleaned up when its
	// dialogue ends.
	Consumable() bool
	// Cleanup is invoked once when a consumable object's dialogue ends.
	Cleanup()
}

// Input payloads.

type SubmitPressed struct {
	Context types.InputContext
}

type ChoiceIndexUpdated struct {
	Index int
}

type InputContextChanged struct {
	From, To types.InputContext
}

// Dialogue payloads.

type EnterDialogue struct {
	Knot   string
	Source Source // nil when not tied to a world object
}

type DialogueStarted struct {
	SessionID string
	Knot      string
}

type DialogueFinished struct {
	SessionID string
	Knot      string
}

type DisplayDialogue struct {
	Line    string
	Choices []types.Choice
}

// Quest payloads.

type QuestRequest struct {
	ID string
}

type QuestStateChanged struct {
	ID    string
	From  types.QuestState
	State types.QuestState
}

type QuestStepProgress struct {
	QuestID string
	StepID  string
	Count   int
	Target  int
}

// Misc payloads.

type ObjectCleaned struct {
	ObjectID string
	Kind     string
}

type ObjectFocused struct {
	ObjectID string // empty when focus is cleared
}

type ClockTick struct {
	Day  int
	Hour int
}

type Output struct {
	Text string
}

var (
	SubmitPressedTopic       = bus.NewTopic[SubmitPressed]("input.submit_pressed")
	ChoiceIndexUpdatedTopic  = bus.NewTopic[ChoiceIndexUpdated]("input.choice_index_updated")
	InputContextChangedTopic = bus.NewTopic[InputContextChanged]("input.context_changed")

	EnterDialogueTopic    = bus.NewTopic[EnterDialogue]("dialogue.enter")
	DialogueStartedTopic  = bus.NewTopic[DialogueStarted]("dialogue.started")
	DialogueFinishedTopic = bus.NewTopic[DialogueFinished]("dialogue.finished")
	DisplayDialogueTopic  = bus.NewTopic[DisplayDialogue]("dialogue.display")

	StartQuestTopic        = bus.NewTopic[QuestRequest]("quest.start")
	AdvanceQuestTopic      = bus.NewTopic[QuestRequest]("quest.advance")
	FinishQuestTopic       = bus.NewTopic[QuestRequest]("quest.finish")
	QuestStateChangedTopic = bus.NewTopic[QuestStateChanged]("quest.state_changed")
	QuestStepProgressTopic = bus.NewTopic[QuestStepProgress]("quest.step_progress")

	ObjectCleanedTopic = bus.NewTopic[ObjectCleaned]("misc.object_cleaned")
	ObjectFocusedTopic = bus.NewTopic[ObjectFocused]("misc.object_focused")
	ClockTickTopic     = bus.NewTopic[ClockTick]("misc.clock_tick")
	OutputTopic        = bus.NewTopic[Output]("misc.output")
)

// Step trigger names used in quest definitions.
const (
	TriggerObjectCleaned = "object_cleaned"
)
