package cli

import (
	"fmt"

	"github.com/nathoo/questweave/types"
)

// ResultLines flattens a result into display lines, numbering choices
// from 1.
func ResultLines(r types.Result) []string {
	lines := append([]string(nil), r.Output...)
	for _, ch := range r.Choices {
		lines = append(lines, fmt.Sprintf("  %d. %s", ch.Index+1, ch.Text))
	}
	return lines
}

// HelpLines is the command reference shown by /help.
func HelpLines() []string {
	return []string{
		"System:",
		"  /save [name]  - Save game (default: quicksave)",
		"  /load [name]  - Load game (default: quicksave)",
		"  /quit         - Exit game",
		"  /help         - Show this help",
		"  /state        - Debug: dump quests, variables and clock",
		"  /trace        - Toggle bus trace output",
		"",
		"In the hub:",
		"  look (l)              - Look around the hub",
		"  go to <thing>         - Walk up to something",
		"  talk to <thing>       - Start a conversation",
		"  clean <thing>         - Tidy up something you're asked to",
		"  leave                 - Step away",
		"  quests (j)            - Show your journal",
		"  wait [hours] (z)      - Let time pass",
		"  time                  - Check the clock",
		"  again (g)             - Repeat your last command",
		"",
		"In a conversation:",
		"  Enter                 - Continue",
		"  <number>              - Pick a choice",
	}
}
