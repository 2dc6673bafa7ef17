// Package types defines the shared data structures for the questweave engine.
// This package contains type definitions and their trivial accessors only.
package types

import (
	"fmt"
	"strconv"
)

// QuestState is the lifecycle position of a quest. States are ordered and a
// quest only ever moves forward.
type QuestState int

const (
	RequirementsNotMet QuestState = iota
	CanStart
	InProgress
	CanFinish
	Finished
)

var questStateNames = [...]string{
	"RequirementsNotMet",
	"CanStart",
	"InProgress",
	"CanFinish",
	"Finished",
}

func (s QuestState) String() string {
	if s < 0 || int(s) >= len(questStateNames) {
		return "QuestState(" + strconv.Itoa(int(s)) + ")"
	}
	return questStateNames[s]
}

// ParseQuestState maps a state name back to its value.
func ParseQuestState(name string) (QuestState, bool) {
	for i, n := range questStateNames {
		if n == name {
			return QuestState(i), true
		}
	}
	return RequirementsNotMet, false
}

// InputContext is the mode governing how a generic "confirm" action is read.
type InputContext int

const (
	Default InputContext = iota
	Dialogue
)

func (c InputContext) String() string {
	switch c {
	case Default:
		return "Default"
	case Dialogue:
		return "Dialogue"
	default:
		return "InputContext(" + strconv.Itoa(int(c)) + ")"
	}
}

// ValueKind tags the active member of a Value.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

// Value is a dialogue variable value: a string, int, float or bool.
type Value struct {
	Kind ValueKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Int  int64     `json:"int,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func IntValue(n int64) Value     { return Value{Kind: KindInt, Int: n} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Num: f} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

// ValueOf converts a plain Go value to a Value. Unsupported types yield an
// invalid Value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(int64(x))
	case int64:
		return IntValue(x)
	case float64:
		if x == float64(int64(x)) {
			return IntValue(int64(x))
		}
		return FloatValue(x)
	default:
		return Value{}
	}
}

// Valid reports whether the value holds one of the supported kinds.
func (v Value) Valid() bool { return v.Kind != KindInvalid }

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}

// Truthy follows the script convention: false, 0, "" and invalid are false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindString:
		return v.Str != ""
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Num != 0
	case KindBool:
		return v.Bool
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return "<invalid>"
	}
}

// GoString makes trace output distinguish "1" from 1.
func (v Value) GoString() string {
	if v.Kind == KindString {
		return fmt.Sprintf("%q", v.Str)
	}
	return v.String()
}

// Choice is a player-selectable branch offered at a choice point.
type Choice struct {
	Index int
	Text  string
}

// Condition is a predicate evaluated against quest and variable state.
type Condition struct {
	Type   string         // "var_is", "var_true", "quest_state", "quest_at_least", "not"
	Params map[string]any // condition-specific parameters
	Inner  *Condition     // for Not(): the negated inner condition
}

// Effect is a single atomic mutation instruction, used for quest rewards.
type Effect struct {
	Type   string
	Params map[string]any
}

// StepDef is the static definition of a quest step: the step completes after
// Target events of type Event are received.
type StepDef struct {
	ID     string
	Event  string // "object_cleaned"
	Target int
	Kind   string // optional: only count objects of this kind
}

// QuestDef is the static definition of a quest.
type QuestDef struct {
	ID       string
	Name     string
	Initial  QuestState
	Requires []Condition
	Steps    []StepDef
	Rewards  []Effect
}

// ObjectDef is an interactable world object.
type ObjectDef struct {
	ID         string
	Name       string
	Kind       string
	Knot       string
	Consumable bool
	Requires   []Condition // object is only reachable while these hold
}

// GameDef holds game metadata from Lua.
type GameDef struct {
	Title   string
	Author  string
	Version string
	Intro   string
}

// Intent is a parsed player command.
type Intent struct {
	Verb   string
	Object string
	Choice int // 0-based choice for "choose"; -1 when absent
}

// Result is what one player command produced.
type Result struct {
	Output   []string
	Choices  []Choice // pending choices once the command is done
	Dialogue bool     // a dialogue session is active after the command
	Trace    []string // bus traffic, for /trace
}
