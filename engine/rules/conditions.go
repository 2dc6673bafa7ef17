// Package rules evaluates conditions used by story branches, choice gates
// and quest requirements.
package rules

import (
	"github.com/nathoo/questweave/types"
)

// Env is the read-only view a condition is evaluated against.
type Env interface {
	Variable(name string) (types.Value, bool)
	QuestState(id string) (types.QuestState, bool)
}

// EvalCondition evaluates a single condition against env.
func EvalCondition(c types.Condition, env Env) bool {
	switch c.Type {
	case "var_is":
		name, _ := c.Params["var"].(string)
		want := types.ValueOf(c.Params["value"])
		got, ok := env.Variable(name)
		return ok && got.Equal(want)

	case "var_true":
		name, _ := c.Params["var"].(string)
		got, ok := env.Variable(name)
		return ok && got.Truthy()

	case "var_gt":
		name, _ := c.Params["var"].(string)
		got, ok := env.Variable(name)
		return ok && toFloat(got) > toFloat(types.ValueOf(c.Params["value"]))

	case "var_lt":
		name, _ := c.Params["var"].(string)
		got, ok := env.Variable(name)
		return ok && toFloat(got) < toFloat(types.ValueOf(c.Params["value"]))

	case "quest_state":
		id, _ := c.Params["quest"].(string)
		name, _ := c.Params["state"].(string)
		want, known := types.ParseQuestState(name)
		got, ok := env.QuestState(id)
		return known && ok && got == want

	case "quest_at_least":
		id, _ := c.Params["quest"].(string)
		name, _ := c.Params["state"].(string)
		want, known := types.ParseQuestState(name)
		got, ok := env.QuestState(id)
		return known && ok && got >= want

	case "not":
		if c.Inner == nil {
			return true
		}
		return !EvalCondition(*c.Inner, env)

	default:
		return false
	}
}

// EvalAllConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAllConditions(conditions []types.Condition, env Env) bool {
	for _, c := range conditions {
		if !EvalCondition(c, env) {
			return false
		}
	}
	return true
}

// KnownCondition reports whether t is a condition type EvalCondition handles.
func KnownCondition(t string) bool {
	switch t {
	case "var_is", "var_true", "var_gt", "var_lt", "quest_state", "quest_at_least", "not":
		return true
	}
	return false
}

func toFloat(v types.Value) float64 {
	switch v.Kind {
	case types.KindInt:
		return float64(v.Int)
	case types.KindFloat:
		return v.Num
	case types.KindBool:
		if v.Bool {
			return 1
		}
	}
	return 0
}
