package loader

import (
	"reflect"
	"testing"

	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/types"
	lua "github.com/yuin/gopher-lua"
)

// newTestVM creates a sandboxed Lua VM with the API registered and a fresh collector.
func newTestVM() (*lua.LState, *collector) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	coll := &collector{}
	registerAPI(L, coll)
	return L, coll
}

func TestCompileGame(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		return {
			title = "Test Game",
			author = "Author",
			version = "1.0",
			intro = "Welcome!"
		}
	`); err != nil {
		t.Fatal(err)
	}

	game := compileGame(L.CheckTable(-1))
	want := types.GameDef{Title: "Test Game", Author: "Author", Version: "1.0", Intro: "Welcome!"}
	if game != want {
		t.Errorf("game = %+v, want %+v", game, want)
	}
}

func TestCompileKnot(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Game { title = "T" }
		Var("met", false)
		Knot "keeper" {
			"Hello.",
			Set("met", true),
			Choice("Help", { Call("StartQuest", "boxes"), "Thanks." }),
			Choice("Secret", nil, VarTrue("met")),
			If(QuestState("boxes", "InProgress"), { "Busy?" }, { Divert("other") }),
			End(),
		}
		Knot "other" { "Other." }
	`); err != nil {
		t.Fatal(err)
	}

	defs, err := compile(coll)
	if err != nil {
		t.Fatal(err)
	}
	nodes := defs.Story.Knots["keeper"]
	kinds := make([]story.NodeKind, len(nodes))
	for i, n := range nodes {
		kinds[i] = n.Kind
	}
	wantKinds := []story.NodeKind{
		story.NodeText, story.NodeSet, story.NodeChoice, story.NodeChoice, story.NodeIf, story.NodeEnd,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("kinds = %v, want %v", kinds, wantKinds)
	}

	if !nodes[1].Value.Equal(types.BoolValue(true)) || nodes[1].Var != "met" {
		t.Errorf("set = %+v", nodes[1])
	}

	help := nodes[2]
	if help.Text != "Help" || len(help.Body) != 2 || help.Cond != nil {
		t.Errorf("help choice = %+v", help)
	}
	call := help.Body[0]
	if call.Kind != story.NodeCall || call.Func != "StartQuest" ||
		!reflect.DeepEqual(call.Args, []types.Value{types.StringValue("boxes")}) {
		t.Errorf("call = %+v", call)
	}

	secret := nodes[3]
	if secret.Cond == nil || secret.Cond.Type != "var_true" || secret.Cond.Params["var"] != "met" {
		t.Errorf("secret gate = %+v", secret.Cond)
	}

	branch := nodes[4]
	if branch.Cond.Type != "quest_state" || branch.Cond.Params["state"] != "InProgress" {
		t.Errorf("if cond = %+v", branch.Cond)
	}
	if len(branch.Body) != 1 || len(branch.Else) != 1 || branch.Else[0].Target != "other" {
		t.Errorf("if branches = %+v / %+v", branch.Body, branch.Else)
	}
}

func TestCompileQuest(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Game { title = "T" }
		Quest "boxes" {
			name = "Dusty Boxes",
			steps = {
				Step "clean" { target = 5, kind = "box" },
				Step "report" { event = "object_cleaned" },
			},
			rewards = { Say("Thanks!"), IncCounter("coins", 3) },
		}
		Quest "lantern" {
			requires = { QuestAtLeast("boxes", "Finished") },
		}
		Quest "open" { initial = "InProgress" }
	`); err != nil {
		t.Fatal(err)
	}

	defs, err := compile(coll)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs.Quests) != 3 {
		t.Fatalf("quests = %d, want 3", len(defs.Quests))
	}

	boxes := defs.Quests[0]
	if boxes.Name != "Dusty Boxes" || boxes.Initial != types.CanStart {
		t.Errorf("boxes = %+v", boxes)
	}
	wantSteps := []types.StepDef{
		{ID: "clean", Event: "object_cleaned", Target: 5, Kind: "box"},
		{ID: "report", Event: "object_cleaned", Target: 1},
	}
	if !reflect.DeepEqual(boxes.Steps, wantSteps) {
		t.Errorf("steps = %+v, want %+v", boxes.Steps, wantSteps)
	}
	if len(boxes.Rewards) != 2 || boxes.Rewards[1].Type != "inc_counter" || boxes.Rewards[1].Params["amount"] != 3 {
		t.Errorf("rewards = %+v", boxes.Rewards)
	}

	if defs.Quests[1].Initial != types.RequirementsNotMet {
		t.Errorf("quest with requirements starts in %s", defs.Quests[1].Initial)
	}
	if defs.Quests[2].Initial != types.InProgress {
		t.Errorf("explicit initial = %s", defs.Quests[2].Initial)
	}

	// Quest state mirrors are declared for the story.
	for id, want := range map[string]string{
		"boxesState":   "CanStart",
		"lanternState": "RequirementsNotMet",
		"openState":    "InProgress",
	} {
		if got := defs.Story.Globals[id]; !got.Equal(types.StringValue(want)) {
			t.Errorf("%s = %v, want %s", id, got, want)
		}
	}
}

func TestCompileObject(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Game { title = "T" }
		Object "box1" {
			name = "Dusty Crate",
			kind = "box",
			knot = "box",
			consumable = true,
			requires = { QuestState("boxes", "InProgress") },
		}
		Object "sign" { name = "Sign" }
	`); err != nil {
		t.Fatal(err)
	}

	defs, err := compile(coll)
	if err != nil {
		t.Fatal(err)
	}
	box := defs.Objects[0]
	if box.ID != "box1" || box.Name != "Dusty Crate" || box.Kind != "box" || box.Knot != "box" || !box.Consumable {
		t.Errorf("box = %+v", box)
	}
	if len(box.Requires) != 1 || box.Requires[0].Type != "quest_state" {
		t.Errorf("requires = %+v", box.Requires)
	}
	if defs.Objects[1].Consumable {
		t.Error("consumable should default to false")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no game", `Knot "a" { "x" }`},
		{"table variable", `Game { title = "T" } Var("bad", {1, 2})`},
		{"duplicate variable", `Game { title = "T" } Var("a", 1) Var("a", 2)`},
		{"duplicate knot", `Game { title = "T" } Knot "a" { "x" } Knot "a" { "y" }`},
		{"plain table in knot", `Game { title = "T" } Knot "a" { { text = "x" } }`},
		{"number in knot", `Game { title = "T" } Knot "a" { 42 }`},
		{"unknown initial", `Game { title = "T" } Quest "q" { initial = "Sleeping" }`},
		{"step not a table", `Game { title = "T" } Quest "q" { steps = { "clean" } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L, coll := newTestVM()
			defer L.Close()
			if err := L.DoString(tt.src); err != nil {
				t.Fatal(err)
			}
			if _, err := compile(coll); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

func TestToGoValue(t *testing.T) {
	tests := []struct {
		in   lua.LValue
		want any
	}{
		{lua.LString("hello"), "hello"},
		{lua.LNumber(42), 42},
		{lua.LNumber(3.14), 3.14},
		{lua.LBool(true), true},
		{lua.LNil, nil},
	}
	for _, tt := range tests {
		if got := toGoValue(tt.in); got != tt.want {
			t.Errorf("toGoValue(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}
