package loader

import (
	"fmt"

	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/state"
	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/types"
	lua "github.com/yuin/gopher-lua"
)

// rawVar holds a declared story global before compilation.
type rawVar struct {
	name  string
	value lua.LValue
}

// rawKnot holds a knot body before compilation.
type rawKnot struct {
	id    string
	table *lua.LTable
}

// rawQuest holds a quest table before compilation.
type rawQuest struct {
	id    string
	table *lua.LTable
}

// rawObject holds a world object table before compilation.
type rawObject struct {
	id    string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Check if it's an array (sequential integer keys starting at 1).
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// toValue converts a scalar Lua value to a story Value.
func toValue(v lua.LValue) (types.Value, error) {
	val := types.ValueOf(toGoValue(v))
	if !val.Valid() {
		return types.Value{}, fmt.Errorf("unsupported value of type %s", v.Type())
	}
	return val, nil
}

// compile converts all collected Lua data into a Defs struct.
func compile(coll *collector) (*state.Defs, error) {
	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	defs := &state.Defs{
		Game: compileGame(coll.game),
		Story: &story.Def{
			Knots:   map[string][]story.Node{},
			Globals: map[string]types.Value{},
		},
	}

	for _, raw := range coll.vars {
		v, err := toValue(raw.value)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", raw.name, err)
		}
		if _, dup := defs.Story.Globals[raw.name]; dup {
			return nil, fmt.Errorf("variable %s declared twice", raw.name)
		}
		defs.Story.Globals[raw.name] = v
	}

	for _, raw := range coll.knots {
		if _, dup := defs.Story.Knots[raw.id]; dup {
			return nil, fmt.Errorf("knot %s defined twice", raw.id)
		}
		nodes, err := compileNodes(raw.table)
		if err != nil {
			return nil, fmt.Errorf("compiling knot %s: %w", raw.id, err)
		}
		defs.Story.Knots[raw.id] = nodes
	}

	for _, raw := range coll.quests {
		q, err := compileQuest(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling quest %s: %w", raw.id, err)
		}
		defs.Quests = append(defs.Quests, q)

		// Every quest is mirrored into the story as "<id>State".
		name := state.QuestStateVar(q.ID)
		if _, ok := defs.Story.Globals[name]; !ok {
			defs.Story.Globals[name] = types.StringValue(q.Initial.String())
		}
	}

	for _, raw := range coll.objects {
		defs.Objects = append(defs.Objects, compileObject(raw))
	}

	return defs, nil
}

func compileGame(tbl *lua.LTable) types.GameDef {
	return types.GameDef{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
	}
}

// compileNodes compiles the array part of a knot or branch body.
func compileNodes(tbl *lua.LTable) ([]story.Node, error) {
	if tbl == nil {
		return nil, nil
	}
	var nodes []story.Node
	for i := 1; i <= tbl.MaxN(); i++ {
		switch v := tbl.RawGetInt(i).(type) {
		case lua.LString:
			nodes = append(nodes, story.Node{Kind: story.NodeText, Text: string(v)})
		case *lua.LTable:
			n, err := compileNode(v)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			nodes = append(nodes, n)
		default:
			return nil, fmt.Errorf("entry %d: expected string or instruction, got %s", i, v.Type())
		}
	}
	return nodes, nil
}

func compileNode(tbl *lua.LTable) (story.Node, error) {
	switch kind := getString(tbl, "node"); kind {
	case "set":
		v, err := toValue(tbl.RawGetString("value"))
		if err != nil {
			return story.Node{}, fmt.Errorf("Set(%s): %w", getString(tbl, "var"), err)
		}
		return story.Node{Kind: story.NodeSet, Var: getString(tbl, "var"), Value: v}, nil

	case "call":
		n := story.Node{Kind: story.NodeCall, Func: getString(tbl, "func")}
		if args := getTable(tbl, "args"); args != nil {
			for i := 1; i <= args.MaxN(); i++ {
				v, err := toValue(args.RawGetInt(i))
				if err != nil {
					return story.Node{}, fmt.Errorf("Call(%s) arg %d: %w", n.Func, i, err)
				}
				n.Args = append(n.Args, v)
			}
		}
		return n, nil

	case "divert":
		return story.Node{Kind: story.NodeDivert, Target: getString(tbl, "target")}, nil

	case "choice":
		body, err := compileNodes(getTable(tbl, "body"))
		if err != nil {
			return story.Node{}, fmt.Errorf("choice %q: %w", getString(tbl, "text"), err)
		}
		n := story.Node{Kind: story.NodeChoice, Text: getString(tbl, "text"), Body: body}
		if when := getTable(tbl, "when"); when != nil {
			c := compileCondition(when)
			n.Cond = &c
		}
		return n, nil

	case "if":
		then, err := compileNodes(getTable(tbl, "then"))
		if err != nil {
			return story.Node{}, fmt.Errorf("if branch: %w", err)
		}
		els, err := compileNodes(getTable(tbl, "else"))
		if err != nil {
			return story.Node{}, fmt.Errorf("else branch: %w", err)
		}
		c := compileCondition(getTable(tbl, "cond"))
		return story.Node{Kind: story.NodeIf, Cond: &c, Body: then, Else: els}, nil

	case "end":
		return story.Node{Kind: story.NodeEnd}, nil

	case "":
		return story.Node{}, fmt.Errorf("table is not a story instruction")

	default:
		return story.Node{}, fmt.Errorf("unknown instruction %q", kind)
	}
}

func compileQuest(raw rawQuest) (types.QuestDef, error) {
	tbl := raw.table
	q := types.QuestDef{
		ID:      raw.id,
		Name:    getString(tbl, "name"),
		Initial: types.CanStart,
	}

	if req := getTable(tbl, "requires"); req != nil {
		q.Requires = compileConditions(req)
		if len(q.Requires) > 0 {
			q.Initial = types.RequirementsNotMet
		}
	}
	if name := getString(tbl, "initial"); name != "" {
		s, ok := types.ParseQuestState(name)
		if !ok {
			return q, fmt.Errorf("unknown initial state %q", name)
		}
		q.Initial = s
	}
	if steps := getTable(tbl, "steps"); steps != nil {
		for i := 1; i <= steps.MaxN(); i++ {
			st, ok := steps.RawGetInt(i).(*lua.LTable)
			if !ok {
				return q, fmt.Errorf("step %d is not a table", i)
			}
			q.Steps = append(q.Steps, compileStep(st, i))
		}
	}
	if rewards := getTable(tbl, "rewards"); rewards != nil {
		q.Rewards = compileEffects(rewards)
	}
	return q, nil
}

func compileStep(tbl *lua.LTable, i int) types.StepDef {
	step := types.StepDef{
		ID:     getString(tbl, "id"),
		Event:  getString(tbl, "event"),
		Target: getInt(tbl, "target"),
		Kind:   getString(tbl, "kind"),
	}
	if step.ID == "" {
		step.ID = fmt.Sprintf("step%d", i)
	}
	if step.Event == "" {
		step.Event = events.TriggerObjectCleaned
	}
	if tbl.RawGetString("target") == lua.LNil {
		step.Target = 1
	}
	return step
}

func compileObject(raw rawObject) types.ObjectDef {
	tbl := raw.table
	o := types.ObjectDef{
		ID:         raw.id,
		Name:       getString(tbl, "name"),
		Kind:       getString(tbl, "kind"),
		Knot:       getString(tbl, "knot"),
		Consumable: getBool(tbl, "consumable", false),
	}
	if req := getTable(tbl, "requires"); req != nil {
		o.Requires = compileConditions(req)
	}
	return o
}

func compileConditions(tbl *lua.LTable) []types.Condition {
	var conditions []types.Condition
	for i := 1; i <= tbl.MaxN(); i++ {
		if condTbl, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			conditions = append(conditions, compileCondition(condTbl))
		}
	}
	return conditions
}

func compileCondition(tbl *lua.LTable) types.Condition {
	if tbl == nil {
		return types.Condition{}
	}
	condType := getString(tbl, "type")

	if condType == "not" {
		if innerTbl := getTable(tbl, "inner"); innerTbl != nil {
			inner := compileCondition(innerTbl)
			return types.Condition{Type: "not", Inner: &inner}
		}
	}

	params := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && string(ks) != "type" {
			params[string(ks)] = toGoValue(v)
		}
	})
	return types.Condition{Type: condType, Params: params}
}

func compileEffects(tbl *lua.LTable) []types.Effect {
	var effects []types.Effect
	for i := 1; i <= tbl.MaxN(); i++ {
		effTbl, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		params := map[string]any{}
		effTbl.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok && string(ks) != "type" {
				params[string(ks)] = toGoValue(v)
			}
		})
		effects = append(effects, types.Effect{Type: getString(effTbl, "type"), Params: params})
	}
	return effects
}
