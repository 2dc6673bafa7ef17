package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerStoryHelpers(L)
	registerConditionHelpers(L)
	registerEffectHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	// Var("name", value) declares a story global.
	L.SetGlobal("Var", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		coll.vars = append(coll.vars, rawVar{name: name, value: L.CheckAny(2)})
		return 0
	}))

	// Knot "id" { "line", Choice(...), ... }, curried.
	L.SetGlobal("Knot", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.knots = append(coll.knots, rawKnot{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Quest "id" { name = "...", steps = {...}, ... }, curried.
	L.SetGlobal("Quest", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.quests = append(coll.quests, rawQuest{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Object "id" { name = "...", knot = "...", consumable = true }, curried.
	L.SetGlobal("Object", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.objects = append(coll.objects, rawObject{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Step "id" { event = "object_cleaned", target = 5 }, curried, returns
	// the table with its id filled in for use inside a quest's steps list.
	L.SetGlobal("Step", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			tbl.RawSetString("id", lua.LString(id))
			L.Push(tbl)
			return 1
		}))
		return 1
	}))
}

// registerStoryHelpers registers the knot instructions. Plain strings in a
// knot are lines of text; everything else is a table tagged with "node".
func registerStoryHelpers(L *lua.LState) {
	// Set("var", value)
	L.SetGlobal("Set", L.NewFunction(func(L *lua.LState) int {
		tbl := node(L, "set")
		tbl.RawSetString("var", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	// Call("Func", args...)
	L.SetGlobal("Call", L.NewFunction(func(L *lua.LState) int {
		tbl := node(L, "call")
		tbl.RawSetString("func", lua.LString(L.CheckString(1)))
		args := L.NewTable()
		for i := 2; i <= L.GetTop(); i++ {
			args.Append(L.Get(i))
		}
		tbl.RawSetString("args", args)
		L.Push(tbl)
		return 1
	}))

	// Divert("knot")
	L.SetGlobal("Divert", L.NewFunction(func(L *lua.LState) int {
		tbl := node(L, "divert")
		tbl.RawSetString("target", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// Choice("text", { body }, condition?)
	L.SetGlobal("Choice", L.NewFunction(func(L *lua.LState) int {
		tbl := node(L, "choice")
		tbl.RawSetString("text", lua.LString(L.CheckString(1)))
		if body := L.OptTable(2, nil); body != nil {
			tbl.RawSetString("body", body)
		}
		if cond := L.OptTable(3, nil); cond != nil {
			tbl.RawSetString("when", cond)
		}
		L.Push(tbl)
		return 1
	}))

	// If(condition, { then }, { else }?)
	L.SetGlobal("If", L.NewFunction(func(L *lua.LState) int {
		tbl := node(L, "if")
		tbl.RawSetString("cond", L.CheckTable(1))
		tbl.RawSetString("then", L.CheckTable(2))
		if els := L.OptTable(3, nil); els != nil {
			tbl.RawSetString("else", els)
		}
		L.Push(tbl)
		return 1
	}))

	// End()
	L.SetGlobal("End", L.NewFunction(func(L *lua.LState) int {
		L.Push(node(L, "end"))
		return 1
	}))
}

func node(L *lua.LState, kind string) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("node", lua.LString(kind))
	return tbl
}

func registerConditionHelpers(L *lua.LState) {
	// VarIs("var", value)
	L.SetGlobal("VarIs", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("var_is"))
		tbl.RawSetString("var", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	// VarTrue("var")
	L.SetGlobal("VarTrue", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("var_true"))
		tbl.RawSetString("var", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// VarGt("var", n)
	L.SetGlobal("VarGt", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("var_gt"))
		tbl.RawSetString("var", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// VarLt("var", n)
	L.SetGlobal("VarLt", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("var_lt"))
		tbl.RawSetString("var", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// QuestState("quest", "InProgress")
	L.SetGlobal("QuestState", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("quest_state"))
		tbl.RawSetString("quest", lua.LString(L.CheckString(1)))
		tbl.RawSetString("state", lua.LString(L.CheckString(2)))
		L.Push(tbl)
		return 1
	}))

	// QuestAtLeast("quest", "CanFinish")
	L.SetGlobal("QuestAtLeast", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("quest_at_least"))
		tbl.RawSetString("quest", lua.LString(L.CheckString(1)))
		tbl.RawSetString("state", lua.LString(L.CheckString(2)))
		L.Push(tbl)
		return 1
	}))

	// Not(condition)
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("not"))
		tbl.RawSetString("inner", L.CheckTable(1))
		L.Push(tbl)
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	// Say("text")
	L.SetGlobal("Say", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("say"))
		tbl.RawSetString("text", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// IncCounter("counter", amount)
	L.SetGlobal("IncCounter", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("inc_counter"))
		tbl.RawSetString("counter", lua.LString(L.CheckString(1)))
		tbl.RawSetString("amount", L.OptNumber(2, 1))
		L.Push(tbl)
		return 1
	}))

	// SetVar("var", value)
	L.SetGlobal("SetVar", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("set_var"))
		tbl.RawSetString("var", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	// StartQuest("quest")
	L.SetGlobal("StartQuest", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("start_quest"))
		tbl.RawSetString("quest", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))
}
