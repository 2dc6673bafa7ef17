// Package effects applies quest reward and follow-up effects. Every effect
// type is one atomic operation against a collaborator. No logic in effects.
package effects

import (
	"fmt"
	"log/slog"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/types"
)

// Counters is the coarse progress store (day counters, tallies).
type Counters interface {
	Add(key string, delta int) (int, error)
}

// Variables is the game-side variable mirror.
type Variables interface {
	Set(name string, v types.Value) bool
}

// Context carries the collaborators effects act on. Nil collaborators turn
// the matching effect types into logged no-ops.
type Context struct {
	Bus      *bus.Bus
	Counters Counters
	Vars     Variables
	Log      *slog.Logger
	QuestID  string // quest whose reward is being applied
}

// Apply runs effects in order and returns the text they produced. A failing
// effect is logged and skipped; the rest still run.
func Apply(effs []types.Effect, ctx Context) []string {
	var output []string

	for _, eff := range effs {
		switch eff.Type {
		case "say":
			text, _ := eff.Params["text"].(string)
			output = append(output, text)
			if ctx.Bus != nil {
				bus.Publish(ctx.Bus, events.OutputTopic, events.Output{Text: text})
			}

		case "inc_counter":
			counter, _ := eff.Params["counter"].(string)
			amount := toInt(eff.Params["amount"])
			if ctx.Counters == nil {
				ctx.logSkip(eff, "no counter store")
				continue
			}
			if _, err := ctx.Counters.Add(counter, amount); err != nil {
				ctx.logFail(eff, err)
			}

		case "set_var":
			name, _ := eff.Params["var"].(string)
			v := types.ValueOf(eff.Params["value"])
			if ctx.Vars == nil || !ctx.Vars.Set(name, v) {
				ctx.logSkip(eff, "variable not tracked")
			}

		case "start_quest":
			id, _ := eff.Params["quest"].(string)
			if ctx.Bus != nil {
				bus.Publish(ctx.Bus, events.StartQuestTopic, events.QuestRequest{ID: id})
			}

		default:
			ctx.logFail(eff, fmt.Errorf("unknown effect type %q", eff.Type))
		}
	}

	return output
}

// Known reports whether Apply handles effect type t.
func Known(t string) bool {
	switch t {
	case "say", "inc_counter", "set_var", "start_quest":
		return true
	}
	return false
}

func (c Context) logSkip(eff types.Effect, reason string) {
	if c.Log != nil {
		c.Log.Debug("effect skipped", "quest", c.QuestID, "effect", eff.Type, "reason", reason)
	}
}

func (c Context) logFail(eff types.Effect, err error) {
	if c.Log != nil {
		c.Log.Warn("effect failed", "quest", c.QuestID, "effect", eff.Type, "error", err)
	}
}

// toInt converts an any value to int, handling float64 from JSON/Lua.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
