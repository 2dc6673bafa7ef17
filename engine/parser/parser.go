// Package parser converts command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strconv"
	"strings"

	"github.com/nathoo/questweave/types"
)

var verbAliases = map[string]string{
	// Look
	"l":      "look",
	"around": "look",
	"list":   "look",

	// Approach
	"approach": "go",
	"walk":     "go",
	"move":     "go",
	"head":     "go",
	"visit":    "go",

	// Talk / Interact
	"ask":      "talk",
	"speak":    "talk",
	"chat":     "talk",
	"use":      "talk",
	"clean":    "talk",
	"wipe":     "talk",
	"interact": "talk",
	"examine":  "talk",
	"x":        "talk",

	// Dialogue flow
	"n":        "next",
	"continue": "next",
	"c":        "next",
	"pick":     "choose",
	"select":   "choose",
	"answer":   "choose",

	// Leave
	"back":    "leave",
	"away":    "leave",
	"retreat": "leave",

	// Journal
	"q":       "quests",
	"j":       "quests",
	"journal": "quests",
	"quest":   "quests",

	// Time
	"z":     "wait",
	"rest":  "wait",
	"sleep": "wait",
	"clock": "time",
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// Parse converts a raw command string into an Intent. Empty input yields the
// zero verb, which the engine treats as a plain submit.
func Parse(input string) types.Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Intent{Choice: -1}
	}

	words := strings.Fields(strings.ToLower(input))

	// Bare number: pick that choice, counting from 1.
	if len(words) == 1 {
		if n, err := strconv.Atoi(words[0]); err == nil {
			return types.Intent{Verb: "choose", Choice: n - 1}
		}
	}

	words = expandMultiWordVerbs(words)

	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := stripArticles(words[1:])
	intent := types.Intent{Verb: verb, Object: strings.Join(rest, " "), Choice: -1}

	if verb == "choose" && len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			intent.Choice = n - 1
			intent.Object = ""
		}
	}
	return intent
}

// expandMultiWordVerbs handles "talk to", "go to", "walk away" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}

	switch words[0] {
	case "talk", "speak", "chat":
		if words[1] == "to" || words[1] == "with" {
			return append([]string{"talk"}, words[2:]...)
		}
	case "go", "walk", "head", "move", "step":
		if words[1] == "away" || words[1] == "back" {
			return []string{"leave"}
		}
		if words[1] == "to" || words[1] == "toward" || words[1] == "towards" {
			return append([]string{"go"}, words[2:]...)
		}
	case "look":
		if words[1] == "around" {
			return []string{"look"}
		}
		if words[1] == "at" {
			return append([]string{"talk"}, words[2:]...)
		}
	}

	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}
