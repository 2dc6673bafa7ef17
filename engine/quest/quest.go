// Package quest is the quest state machine. Quests move forward through
// RequirementsNotMet, CanStart, InProgress, CanFinish and Finished; while in
// progress they walk their steps in order, each step counting world events
// until it reaches its target.
package quest

import (
	"log/slog"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/rules"
	"github.com/nathoo/questweave/types"
)

// Variables is the read side of the variable mirror, used by requirement
// conditions.
type Variables interface {
	Variable(name string) (types.Value, bool)
}

// RewardFunc applies a finished quest's rewards.
type RewardFunc func(def types.QuestDef)

type quest struct {
	def   types.QuestDef
	state types.QuestState
	step  int // index into def.Steps of the active step
	count int // matching events seen by the active step
	sub   bus.Subscription
}

// Manager owns every quest loaded from definitions.
type Manager struct {
	bus  *bus.Bus
	log  *slog.Logger
	vars Variables

	quests  map[string]*quest
	order   []string
	rewards RewardFunc
	subs    []bus.Subscription

	checking bool
	recheck  bool
}

// NewManager creates one quest per definition in its initial state,
// subscribes to the quest request topics and runs a first requirements
// check. vars may be nil when no requirement reads variables.
func NewManager(b *bus.Bus, defs []types.QuestDef, vars Variables, log *slog.Logger) *Manager {
	m := &Manager{
		bus:    b,
		log:    log,
		vars:   vars,
		quests: make(map[string]*quest, len(defs)),
	}
	for _, def := range defs {
		if _, dup := m.quests[def.ID]; dup {
			log.Warn("duplicate quest ignored", "quest", def.ID)
			continue
		}
		m.quests[def.ID] = &quest{def: def, state: def.Initial}
		m.order = append(m.order, def.ID)
	}

	m.subs = append(m.subs,
		bus.Subscribe(b, events.StartQuestTopic, func(e events.QuestRequest) { m.Start(e.ID) }),
		bus.Subscribe(b, events.AdvanceQuestTopic, func(e events.QuestRequest) { m.Advance(e.ID) }),
		bus.Subscribe(b, events.FinishQuestTopic, func(e events.QuestRequest) { m.Finish(e.ID) }),
		bus.Subscribe(b, events.DialogueFinishedTopic, func(events.DialogueFinished) { m.CheckRequirements() }),
	)

	for _, id := range m.order {
		if q := m.quests[id]; q.state == types.InProgress {
			m.enterStep(q, 0)
		}
	}
	m.CheckRequirements()
	return m
}

// SetRewardHandler installs fn to run when a quest finishes.
func (m *Manager) SetRewardHandler(fn RewardFunc) {
	m.rewards = fn
}

// Close detaches every subscription the manager holds.
func (m *Manager) Close() {
	for _, s := range m.subs {
		m.bus.Unsubscribe(s)
	}
	m.subs = nil
	for _, q := range m.quests {
		m.bus.Unsubscribe(q.sub)
		q.sub = bus.Subscription{}
	}
}

// Announce publishes the current state of every quest so late subscribers
// (the variable mirror, a freshly attached UI) can catch up.
func (m *Manager) Announce() {
	for _, id := range m.order {
		q := m.quests[id]
		bus.Publish(m.bus, events.QuestStateChangedTopic, events.QuestStateChanged{
			ID: id, From: q.state, State: q.state,
		})
	}
}

// Start moves a CanStart quest to InProgress and instantiates its first
// step. Any other state is a no-op.
func (m *Manager) Start(id string) {
	q, ok := m.lookup(id, "start")
	if !ok {
		return
	}
	if q.state != types.CanStart {
		m.log.Debug("quest start ignored", "quest", id, "state", q.state)
		return
	}
	m.setState(q, types.InProgress)
	if q.state == types.InProgress {
		m.enterStep(q, 0)
	}
}

// Advance finishes the active step of an InProgress quest and instantiates
// the next one, or moves the quest to CanFinish when no steps remain.
func (m *Manager) Advance(id string) {
	q, ok := m.lookup(id, "advance")
	if !ok {
		return
	}
	if q.state != types.InProgress {
		m.log.Debug("quest advance ignored", "quest", id, "state", q.state)
		return
	}
	m.bus.Unsubscribe(q.sub)
	q.sub = bus.Subscription{}
	m.enterStep(q, q.step+1)
}

// Finish moves a CanFinish quest to Finished and applies its rewards.
func (m *Manager) Finish(id string) {
	q, ok := m.lookup(id, "finish")
	if !ok {
		return
	}
	if q.state != types.CanFinish {
		m.log.Debug("quest finish ignored", "quest", id, "state", q.state)
		return
	}
	m.setState(q, types.Finished)
	if m.rewards != nil {
		m.rewards(q.def)
	}
}

// CheckRequirements promotes every RequirementsNotMet quest whose
// requirements all hold to CanStart.
func (m *Manager) CheckRequirements() {
	if m.checking {
		m.recheck = true
		return
	}
	m.checking = true
	defer func() { m.checking = false }()

	for {
		m.recheck = false
		for _, id := range m.order {
			q := m.quests[id]
			if q.state != types.RequirementsNotMet {
				continue
			}
			if rules.EvalAllConditions(q.def.Requires, m) {
				m.setState(q, types.CanStart)
			}
		}
		if !m.recheck {
			return
		}
	}
}

// State returns the current state of quest id.
func (m *Manager) State(id string) (types.QuestState, bool) {
	q, ok := m.quests[id]
	if !ok {
		return types.RequirementsNotMet, false
	}
	return q.state, true
}

// QuestState is State under the name conditions expect.
func (m *Manager) QuestState(id string) (types.QuestState, bool) {
	return m.State(id)
}

// Variable reads the variable mirror for requirement conditions.
func (m *Manager) Variable(name string) (types.Value, bool) {
	if m.vars == nil {
		return types.Value{}, false
	}
	return m.vars.Variable(name)
}

// Quests returns quest ids in definition order.
func (m *Manager) Quests() []string {
	return append([]string(nil), m.order...)
}

// Def returns the definition of quest id.
func (m *Manager) Def(id string) (types.QuestDef, bool) {
	q, ok := m.quests[id]
	if !ok {
		return types.QuestDef{}, false
	}
	return q.def, true
}

// Progress reports the active step of an InProgress quest.
type Progress struct {
	StepID string
	Count  int
	Target int
}

// ActiveStep returns the progress of the quest's active step. ok is false
// unless the quest is InProgress with a step running.
func (m *Manager) ActiveStep(id string) (Progress, bool) {
	q, found := m.quests[id]
	if !found || q.state != types.InProgress || q.step >= len(q.def.Steps) {
		return Progress{}, false
	}
	st := q.def.Steps[q.step]
	return Progress{StepID: st.ID, Count: q.count, Target: st.Target}, true
}

// Saved is the persisted form of one quest.
type Saved struct {
	State types.QuestState `json:"state"`
	Step  int              `json:"step,omitempty"`
	Count int              `json:"count,omitempty"`
}

// Snapshot captures every quest for saving.
func (m *Manager) Snapshot() map[string]Saved {
	out := make(map[string]Saved, len(m.quests))
	for id, q := range m.quests {
		out[id] = Saved{State: q.state, Step: q.step, Count: q.count}
	}
	return out
}

// Restore overwrites quest states from a snapshot, re-instantiating active
// steps with their counters. Unknown quest ids and entries with an
// unknown state or an out-of-range step are logged and skipped.
func (m *Manager) Restore(snap map[string]Saved) {
	for _, id := range m.order {
		saved, ok := snap[id]
		if !ok {
			continue
		}
		q := m.quests[id]
		if saved.State < types.RequirementsNotMet || saved.State > types.Finished {
			m.log.Warn("saved quest state out of range, skipped", "quest", id, "state", int(saved.State))
			continue
		}
		if saved.Step < 0 || saved.Step > len(q.def.Steps) {
			m.log.Warn("saved quest step out of range, skipped", "quest", id, "step", saved.Step)
			continue
		}
		m.bus.Unsubscribe(q.sub)
		q.sub = bus.Subscription{}

		from := q.state
		q.state = saved.State
		q.step, q.count = 0, 0
		bus.Publish(m.bus, events.QuestStateChangedTopic, events.QuestStateChanged{
			ID: id, From: from, State: q.state,
		})
		if q.state == types.InProgress {
			m.enterStep(q, saved.Step)
			if q.state == types.InProgress {
				q.count = clampCount(saved.Count, q.def.Steps[q.step].Target)
			}
		}
	}
	for id := range snap {
		if _, ok := m.quests[id]; !ok {
			m.log.Warn("saved quest not defined", "quest", id)
		}
	}
	m.CheckRequirements()
}

// clampCount keeps a restored counter inside [0, target).
func clampCount(count, target int) int {
	if count < 0 {
		return 0
	}
	if count >= target {
		return target - 1
	}
	return count
}

func (m *Manager) lookup(id, op string) (*quest, bool) {
	q, ok := m.quests[id]
	if !ok {
		m.log.Warn("unknown quest", "quest", id, "op", op)
	}
	return q, ok
}

func (m *Manager) setState(q *quest, to types.QuestState) {
	from := q.state
	if to <= from {
		return
	}
	q.state = to
	m.log.Info("quest state changed", "quest", q.def.ID, "from", from, "to", to)
	bus.Publish(m.bus, events.QuestStateChangedTopic, events.QuestStateChanged{
		ID: q.def.ID, From: from, State: to,
	})
	m.CheckRequirements()
}

// enterStep makes step i active, or moves the quest to CanFinish when i is
// past the last step.
func (m *Manager) enterStep(q *quest, i int) {
	q.step, q.count = i, 0
	if i >= len(q.def.Steps) {
		m.setState(q, types.CanFinish)
		return
	}

	st := q.def.Steps[i]
	switch st.Event {
	case events.TriggerObjectCleaned:
		q.sub = bus.Subscribe(m.bus, events.ObjectCleanedTopic, func(e events.ObjectCleaned) {
			if st.Kind != "" && st.Kind != e.Kind {
				return
			}
			m.onStepEvent(q, i)
		})
	default:
		m.log.Warn("step trigger not supported, waiting for explicit advance",
			"quest", q.def.ID, "step", st.ID, "event", st.Event)
	}
}

func (m *Manager) onStepEvent(q *quest, i int) {
	if q.state != types.InProgress || q.step != i {
		return
	}
	st := q.def.Steps[i]
	q.count++
	bus.Publish(m.bus, events.QuestStepProgressTopic, events.QuestStepProgress{
		QuestID: q.def.ID, StepID: st.ID, Count: q.count, Target: st.Target,
	})
	if q.count >= st.Target {
		m.Advance(q.def.ID)
	}
}
