package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nathoo/questweave/engine"
	"github.com/nathoo/questweave/engine/save"
)

// WriteSave saves eng's progress to dir/name.json and returns the path.
func WriteSave(eng *engine.Engine, dir, name string) (string, error) {
	data, err := eng.Save()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadSave restores eng's progress from dir/name.json.
func ReadSave(eng *engine.Engine, dir, name string) (*save.SaveData, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, err
	}
	return eng.Load(data)
}

// StateLines is the /state debug dump shared by the plain and full-screen
// hosts.
func StateLines(eng *engine.Engine) []string {
	lines := []string{
		fmt.Sprintf("Clock: %s (%s)", eng.Clock, eng.Clock.TimeOfDay()),
		fmt.Sprintf("Input: %s", eng.Input.Context()),
	}

	if o, ok := eng.World.Focused(); ok {
		lines = append(lines, "Focus: "+o.ObjectID())
	} else {
		lines = append(lines, "Focus: none")
	}
	if s, ok := eng.Dialogue.Session(); ok {
		lines = append(lines, fmt.Sprintf("Dialogue: %s (session %s)", s.Knot, s.ID))
	}

	var quests []string
	for _, id := range eng.Quests.Quests() {
		st, _ := eng.Quests.State(id)
		q := fmt.Sprintf("%s=%s", id, st)
		if p, ok := eng.Quests.ActiveStep(id); ok {
			q += fmt.Sprintf("(%s %d/%d)", p.StepID, p.Count, p.Target)
		}
		quests = append(quests, q)
	}
	lines = append(lines, "Quests: "+strings.Join(quests, ", "))

	var vars []string
	for _, name := range eng.Vars.Names() {
		v, _ := eng.Vars.Variable(name)
		vars = append(vars, fmt.Sprintf("%s=%s", name, v))
	}
	lines = append(lines, "Variables: "+strings.Join(vars, ", "))

	if counters := eng.Counters(); len(counters) > 0 {
		keys := make([]string, 0, len(counters))
		for k := range counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, counters[k]))
		}
		lines = append(lines, "Counters: "+strings.Join(parts, ", "))
	}
	if consumed := eng.World.Consumed(); len(consumed) > 0 {
		lines = append(lines, "Cleaned: "+strings.Join(consumed, ", "))
	}
	return lines
}
