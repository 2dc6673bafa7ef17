package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/nathoo/questweave/engine/dialogue"
	"github.com/nathoo/questweave/engine/effects"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/rules"
	"github.com/nathoo/questweave/engine/state"
	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Functions the dialogue bridge binds for scripts.
var questFunctions = map[string]bool{
	dialogue.FuncStartQuest:   true,
	dialogue.FuncAdvanceQuest: true,
	dialogue.FuncFinishQuest:  true,
}

// validate checks the compiled defs for referential integrity and consistency.
func validate(defs *state.Defs) error {
	ve := &ValidationError{}

	if defs.Game.Title == "" {
		ve.Errors = append(ve.Errors, "Game.Title is required")
	}

	// Quests.
	questIDs := map[string]bool{}
	for _, q := range defs.Quests {
		if questIDs[q.ID] {
			ve.errorf("duplicate quest ID %q", q.ID)
		}
		questIDs[q.ID] = true
	}
	for _, q := range defs.Quests {
		validateConditions(q.Requires, defs, ve)
		validateEffects(q.Rewards, defs, ve)
		if len(q.Requires) > 0 && q.Initial != types.RequirementsNotMet {
			ve.warnf("quest %q has requirements but starts in %s", q.ID, q.Initial)
		}
		stepIDs := map[string]bool{}
		for _, st := range q.Steps {
			if stepIDs[st.ID] {
				ve.errorf("quest %q has duplicate step %q", q.ID, st.ID)
			}
			stepIDs[st.ID] = true
			if st.Event != events.TriggerObjectCleaned {
				ve.errorf("quest %q step %q uses unknown event %q", q.ID, st.ID, st.Event)
			}
			if st.Target < 1 {
				ve.errorf("quest %q step %q target must be at least 1, got %d", q.ID, st.ID, st.Target)
			}
			if st.Kind != "" && !hasObjectKind(defs, st.Kind) {
				ve.warnf("quest %q step %q counts kind %q but no object has it", q.ID, st.ID, st.Kind)
			}
		}
	}

	// Knots.
	if defs.Story != nil {
		for _, knot := range defs.Knots() {
			validateNodes(knot, defs.Story.Knots[knot], defs, ve)
		}
	}

	// Objects.
	objectIDs := map[string]bool{}
	for _, o := range defs.Objects {
		if objectIDs[o.ID] {
			ve.errorf("duplicate object ID %q", o.ID)
		}
		objectIDs[o.ID] = true
		validateConditions(o.Requires, defs, ve)
		if o.Knot == "" {
			if !o.Consumable {
				ve.warnf("object %q has no knot and cannot be cleaned", o.ID)
			}
			continue
		}
		if !hasKnot(defs, o.Knot) {
			ve.errorf("object %q references undefined knot %q", o.ID, o.Knot)
		}
	}

	// Print warnings to stderr.
	for _, w := range ve.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateNodes(knot string, nodes []story.Node, defs *state.Defs, ve *ValidationError) {
	for _, n := range nodes {
		switch n.Kind {
		case story.NodeSet:
			if _, ok := defs.Story.Globals[n.Var]; !ok {
				ve.warnf("knot %q sets undeclared variable %q (treated as temporary)", knot, n.Var)
			}

		case story.NodeCall:
			if !questFunctions[n.Func] {
				ve.errorf("knot %q calls unknown function %q", knot, n.Func)
				continue
			}
			if len(n.Args) != 1 || n.Args[0].Kind != types.KindString {
				ve.errorf("knot %q: %s takes exactly one quest ID", knot, n.Func)
				continue
			}
			if !hasQuest(defs, n.Args[0].Str) {
				ve.errorf("knot %q: %s references undefined quest %q", knot, n.Func, n.Args[0].Str)
			}

		case story.NodeDivert:
			if !hasKnot(defs, n.Target) {
				ve.errorf("knot %q diverts to undefined knot %q", knot, n.Target)
			}

		case story.NodeChoice:
			if n.Cond != nil {
				validateConditions([]types.Condition{*n.Cond}, defs, ve)
			}
			validateNodes(knot, n.Body, defs, ve)

		case story.NodeIf:
			if n.Cond != nil {
				validateConditions([]types.Condition{*n.Cond}, defs, ve)
			}
			validateNodes(knot, n.Body, defs, ve)
			validateNodes(knot, n.Else, defs, ve)
		}
	}
}

func validateConditions(conditions []types.Condition, defs *state.Defs, ve *ValidationError) {
	for _, cond := range conditions {
		if !rules.KnownCondition(cond.Type) {
			ve.errorf("unknown condition type %q", cond.Type)
			continue
		}

		switch cond.Type {
		case "quest_state", "quest_at_least":
			if id, _ := cond.Params["quest"].(string); !hasQuest(defs, id) {
				ve.errorf("condition %s references undefined quest %q", cond.Type, id)
			}
			if name, _ := cond.Params["state"].(string); name != "" {
				if _, ok := types.ParseQuestState(name); !ok {
					ve.errorf("condition %s uses unknown state %q", cond.Type, name)
				}
			}
		case "var_is", "var_true", "var_gt", "var_lt":
			if name, _ := cond.Params["var"].(string); !hasGlobal(defs, name) {
				ve.warnf("condition %s references undeclared variable %q", cond.Type, name)
			}
		case "not":
			if cond.Inner != nil {
				validateConditions([]types.Condition{*cond.Inner}, defs, ve)
			}
		}
	}
}

func validateEffects(effs []types.Effect, defs *state.Defs, ve *ValidationError) {
	for _, eff := range effs {
		if !effects.Known(eff.Type) {
			ve.errorf("unknown effect type %q", eff.Type)
			continue
		}

		switch eff.Type {
		case "start_quest":
			if id, _ := eff.Params["quest"].(string); !hasQuest(defs, id) {
				ve.errorf("effect start_quest references undefined quest %q", id)
			}
		case "set_var":
			if name, _ := eff.Params["var"].(string); !hasGlobal(defs, name) {
				ve.errorf("effect set_var references undeclared variable %q", name)
			}
		}
	}
}

func hasQuest(defs *state.Defs, id string) bool {
	_, ok := defs.Quest(id)
	return ok
}

func hasKnot(defs *state.Defs, knot string) bool {
	if defs.Story == nil {
		return false
	}
	_, ok := defs.Story.Knots[knot]
	return ok
}

func hasGlobal(defs *state.Defs, name string) bool {
	if defs.Story == nil {
		return false
	}
	_, ok := defs.Story.Globals[name]
	return ok
}

func hasObjectKind(defs *state.Defs, kind string) bool {
	for _, o := range defs.Objects {
		if o.Kind == kind {
			return true
		}
	}
	return false
}
