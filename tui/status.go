package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nathoo/questweave/types"
)

// renderStatusBar produces a full-width inverted status line showing
// where the player stands, the quest in hand and the clock.
func (m Model) renderStatusBar() string {
	where := "Hub"
	if o, ok := m.engine.World.Focused(); ok {
		where = m.defs.ObjectName(o.ObjectID())
	}
	left := " " + where
	if m.engine.Dialogue.Playing() {
		left += " | Talking"
	}

	clock := fmt.Sprintf("Day %d %02d:00 ", m.engine.Clock.Day(), m.engine.Clock.Hour())
	right := clock

	// Show the active quest if it fits.
	if q := m.activeQuest(); q != "" {
		candidate := q + " | " + clock
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

// activeQuest summarizes the first quest being worked on, or "".
func (m Model) activeQuest() string {
	for _, id := range m.engine.Quests.Quests() {
		st, _ := m.engine.Quests.State(id)
		switch st {
		case types.InProgress:
			name := m.defs.QuestName(id)
			if p, ok := m.engine.Quests.ActiveStep(id); ok {
				return fmt.Sprintf("%s %d/%d", name, p.Count, p.Target)
			}
			return name
		case types.CanFinish:
			return m.defs.QuestName(id) + " (turn in)"
		}
	}
	return ""
}
