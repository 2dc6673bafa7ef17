package parser

import (
	"testing"

	"github.com/nathoo/questweave/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  types.Intent
	}{
		// Empty / whitespace
		{
			name:  "empty string",
			input: "",
			want:  types.Intent{Choice: -1},
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  types.Intent{Choice: -1},
		},

		// Basic verbs
		{
			name:  "look",
			input: "look",
			want:  types.Intent{Verb: "look", Choice: -1},
		},
		{
			name:  "l → look",
			input: "l",
			want:  types.Intent{Verb: "look", Choice: -1},
		},
		{
			name:  "look around → look",
			input: "look around",
			want:  types.Intent{Verb: "look", Choice: -1},
		},
		{
			name:  "journal → quests",
			input: "journal",
			want:  types.Intent{Verb: "quests", Choice: -1},
		},

		// Approach
		{
			name:  "go to the box",
			input: "go to the box",
			want:  types.Intent{Verb: "go", Object: "box", Choice: -1},
		},
		{
			name:  "approach keeper",
			input: "approach Keeper",
			want:  types.Intent{Verb: "go", Object: "keeper", Choice: -1},
		},
		{
			name:  "walk away → leave",
			input: "walk away",
			want:  types.Intent{Verb: "leave", Choice: -1},
		},

		// Talk / interact
		{
			name:  "talk to keeper",
			input: "talk to the keeper",
			want:  types.Intent{Verb: "talk", Object: "keeper", Choice: -1},
		},
		{
			name:  "clean dusty box",
			input: "clean dusty box",
			want:  types.Intent{Verb: "talk", Object: "dusty box", Choice: -1},
		},
		{
			name:  "look at sign",
			input: "look at sign",
			want:  types.Intent{Verb: "talk", Object: "sign", Choice: -1},
		},
		{
			name:  "bare talk",
			input: "talk",
			want:  types.Intent{Verb: "talk", Choice: -1},
		},

		// Dialogue flow
		{
			name:  "bare number",
			input: "2",
			want:  types.Intent{Verb: "choose", Choice: 1},
		},
		{
			name:  "choose 1",
			input: "choose 1",
			want:  types.Intent{Verb: "choose", Choice: 0},
		},
		{
			name:  "choose without number",
			input: "pick",
			want:  types.Intent{Verb: "choose", Choice: -1},
		},
		{
			name:  "continue → next",
			input: "continue",
			want:  types.Intent{Verb: "next", Choice: -1},
		},

		// Time
		{
			name:  "wait with hours",
			input: "rest 3",
			want:  types.Intent{Verb: "wait", Object: "3", Choice: -1},
		},

		// Unknown verbs pass through.
		{
			name:  "unknown",
			input: "dance wildly",
			want:  types.Intent{Verb: "dance", Object: "wildly", Choice: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}
