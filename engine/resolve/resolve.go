// Package resolve maps object names typed by the player to world object IDs.
package resolve

import (
	"fmt"
	"strings"

	"github.com/nathoo/questweave/types"
)

// AmbiguityError indicates multiple objects matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no object matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("you don't see %q here", e.Name)
}

// Resolve finds the object among objs that name refers to. An exact ID match
// wins; otherwise names are matched case-insensitively, whole or by word.
func Resolve(objs []types.ObjectDef, name string) (string, error) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	for _, o := range objs {
		if o.ID == name {
			return o.ID, nil
		}
	}

	var exact, partial []string
	for _, o := range objs {
		switch matchName(o, nameLower) {
		case matchExact:
			exact = append(exact, o.ID)
		case matchPartial:
			partial = append(partial, o.ID)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

type match int

const (
	matchNone match = iota
	matchPartial
	matchExact
)

// matchName checks an object's display name and ID against the query.
// "box" matches "Dusty Box"; "dusty box" matches ID "dusty_box".
func matchName(o types.ObjectDef, nameLower string) match {
	display := strings.ToLower(o.Name)
	idLower := strings.ToLower(o.ID)
	if display == nameLower || idLower == nameLower ||
		strings.ReplaceAll(nameLower, " ", "_") == idLower {
		return matchExact
	}
	for _, word := range strings.Fields(display) {
		if word == nameLower {
			return matchPartial
		}
	}
	return matchNone
}
