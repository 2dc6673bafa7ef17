// Package state holds the immutable definitions a game is built from and
// lookups over them.
package state

import (
	"sort"

	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/types"
)

// Defs holds the immutable game definitions loaded from Lua.
type Defs struct {
	Game    types.GameDef
	Story   *story.Def
	Quests  []types.QuestDef
	Objects []types.ObjectDef
}

// QuestStateVar is the story variable mirroring quest id's state.
func QuestStateVar(id string) string {
	return id + "State"
}

// Quest returns the definition of quest id.
func (d *Defs) Quest(id string) (types.QuestDef, bool) {
	for _, q := range d.Quests {
		if q.ID == id {
			return q, true
		}
	}
	return types.QuestDef{}, false
}

// Object returns the definition of object id.
func (d *Defs) Object(id string) (types.ObjectDef, bool) {
	for _, o := range d.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return types.ObjectDef{}, false
}

// Knots returns the story's knot names, sorted.
func (d *Defs) Knots() []string {
	if d.Story == nil {
		return nil
	}
	names := make([]string, 0, len(d.Story.Knots))
	for name := range d.Story.Knots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QuestName returns the display name of quest id, falling back to the id.
func (d *Defs) QuestName(id string) string {
	if q, ok := d.Quest(id); ok && q.Name != "" {
		return q.Name
	}
	return id
}

// ObjectName returns the display name of object id, falling back to the id.
func (d *Defs) ObjectName(id string) string {
	if o, ok := d.Object(id); ok && o.Name != "" {
		return o.Name
	}
	return id
}
