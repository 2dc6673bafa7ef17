package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nathoo/questweave/engine"
)

// Meta runs the slash commands both hosts share.
type Meta struct {
	Engine  *engine.Engine
	SaveDir string
	Trace   bool
}

// Run executes one "/command [arg]" line. It returns system lines, any game
// output that followed (a reload describes the hub), and whether the host
// should exit.
func (m *Meta) Run(input string) (system, output []string, quit bool) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, nil, false
	}
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, nil, true

	case "/save":
		if arg == "" {
			arg = "quicksave"
		}
		path, err := WriteSave(m.Engine, m.SaveDir, arg)
		if err != nil {
			return []string{fmt.Sprintf("Save failed: %v", err)}, nil, false
		}
		return []string{fmt.Sprintf("Game saved to %s.", filepath.Base(path))}, nil, false

	case "/load":
		if arg == "" {
			arg = "quicksave"
		}
		sd, err := ReadSave(m.Engine, m.SaveDir, arg)
		if err != nil {
			return []string{fmt.Sprintf("Load failed: %v", err)}, nil, false
		}
		return []string{fmt.Sprintf("Game loaded from %s (day %d).", arg, sd.Day)},
			m.Engine.Step("look").Output, false

	case "/help":
		return nil, HelpLines(), false

	case "/state":
		return StateLines(m.Engine), nil, false

	case "/trace":
		m.Trace = !m.Trace
		if m.Trace {
			return []string{"Trace output enabled."}, nil, false
		}
		return []string{"Trace output disabled."}, nil, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, nil, false
	}
}
