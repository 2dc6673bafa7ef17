// Package engine wires the bus, input tracker, story runtime, variable
// layer, dialogue bridge, quest manager, world, scheduler and clock into one
// game, and exposes the Step() command pipeline the hosts drive.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/clock"
	"github.com/nathoo/questweave/engine/dialogue"
	"github.com/nathoo/questweave/engine/effects"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/input"
	"github.com/nathoo/questweave/engine/parser"
	"github.com/nathoo/questweave/engine/quest"
	"github.com/nathoo/questweave/engine/resolve"
	"github.com/nathoo/questweave/engine/save"
	"github.com/nathoo/questweave/engine/state"
	"github.com/nathoo/questweave/engine/story"
	"github.com/nathoo/questweave/engine/tasks"
	"github.com/nathoo/questweave/engine/variables"
	"github.com/nathoo/questweave/engine/world"
	"github.com/nathoo/questweave/types"
)

// Counters is the progress store. progress.Store satisfies it.
type Counters interface {
	Get(key string) (int, bool, error)
	Set(key string, value int) error
	Add(key string, delta int) (int, error)
}

// Options tune a new engine. The zero value is usable.
type Options struct {
	Progress   Counters      // nil keeps counters in memory
	HourLength time.Duration // ticked time per game hour; 0 stops the clock
	StartHour  int
	Log        *slog.Logger
}

// Engine holds the game definitions and every runtime component.
type Engine struct {
	Defs *state.Defs

	Bus      *bus.Bus
	Input    *input.Tracker
	Story    *story.Story
	Vars     *variables.Sync
	Dialogue *dialogue.Bridge
	Quests   *quest.Manager
	World    *world.World
	Tasks    *tasks.Scheduler
	Clock    *clock.Clock

	CommandLog []string

	log        *slog.Logger
	progress   Counters
	hourLength time.Duration

	out       []string
	choices   []types.Choice
	trace     []string
	restoring bool
}

// New builds an engine from definitions.
func New(defs *state.Defs, opts Options) (*Engine, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	progress := opts.Progress
	if progress == nil {
		progress = memCounters{}
	}
	storyDef := defs.Story
	if storyDef == nil {
		storyDef = &story.Def{}
	}

	e := &Engine{
		Defs:       defs,
		Bus:        bus.New(),
		Tasks:      tasks.New(),
		CommandLog: []string{},
		log:        log,
		progress:   progress,
		hourLength: opts.HourLength,
	}
	e.subscribeOutput()

	e.Input = input.NewTracker(e.Bus)
	e.Story = story.New(storyDef)
	e.Vars = variables.New(e.Bus, e.Story, log.With("component", "variables"))
	e.Dialogue = dialogue.NewBridge(e.Bus, e.Story, e.Vars, e.Input, log.With("component", "dialogue"))

	e.restoring = true
	e.Quests = quest.NewManager(e.Bus, defs.Quests, e.Vars, log.With("component", "quest"))
	e.Quests.SetRewardHandler(e.applyRewards)
	e.Quests.Announce()
	e.restoring = false

	e.World = world.New(e.Bus, defs.Objects, e.Tasks, e.Quests, log.With("component", "world"))

	clk, err := clock.New(e.Bus, e.Tasks, progress, opts.HourLength, opts.StartHour, log.With("component", "clock"))
	if err != nil {
		return nil, err
	}
	e.Clock = clk
	e.out, e.trace = nil, nil
	return e, nil
}

// Close detaches every component from the bus.
func (e *Engine) Close() {
	e.Dialogue.Close()
	e.Quests.Close()
	e.World.Close()
	e.Vars.Close()
}

// Step processes one player command and returns what it produced.
func (e *Engine) Step(input string) types.Result {
	e.CommandLog = append(e.CommandLog, input)
	intent := parser.Parse(input)

	if e.Dialogue.Playing() {
		e.stepDialogue(intent)
	} else {
		e.stepWorld(intent)
	}
	return e.Flush()
}

// Tick advances scheduled tasks and the clock by dt of game time.
func (e *Engine) Tick(dt time.Duration) types.Result {
	e.Tasks.Tick(dt)
	return e.Flush()
}

// Approach focuses a world object.
func (e *Engine) Approach(id string) error {
	return e.World.Approach(id)
}

// Submit presses "confirm" in the current input context.
func (e *Engine) Submit() {
	e.Input.Submit()
}

// SelectChoice highlights choice i of the active dialogue.
func (e *Engine) SelectChoice(i int) {
	e.Input.SelectChoice(i)
}

// Interact approaches an object and submits, opening its dialogue.
func (e *Engine) Interact(id string) error {
	if err := e.World.Approach(id); err != nil {
		return err
	}
	e.Input.Submit()
	return nil
}

// Flush returns and clears everything produced since the last Flush.
func (e *Engine) Flush() types.Result {
	r := types.Result{
		Output:   e.out,
		Dialogue: e.Dialogue.Playing(),
		Trace:    e.trace,
	}
	if r.Dialogue {
		r.Choices = e.choices
	}
	e.out, e.trace = nil, nil
	return r
}

func (e *Engine) stepDialogue(intent types.Intent) {
	switch intent.Verb {
	case "", "next":
		e.Input.Submit()

	case "talk":
		if intent.Object != "" {
			e.say("You're already in a conversation.")
			return
		}
		e.Input.Submit()

	case "choose":
		n := len(e.choices)
		if n == 0 {
			e.say("There's nothing to choose right now. Press enter to continue.")
			return
		}
		if intent.Choice < 0 || intent.Choice >= n {
			e.say(fmt.Sprintf("Pick a choice from 1 to %d.", n))
			return
		}
		e.Input.SelectChoice(intent.Choice)
		e.Input.Submit()

	case "quests":
		e.journal()

	case "time":
		e.tellTime()

	default:
		e.say("You're in a conversation. Press enter to continue or pick a numbered choice.")
	}
}

func (e *Engine) stepWorld(intent types.Intent) {
	switch intent.Verb {
	case "", "next":
		if _, ok := e.World.Focused(); !ok {
			e.say("What do you want to do?")
			return
		}
		e.talkFocused()

	case "look":
		e.describeHub()

	case "go":
		if intent.Object == "" {
			e.say("Go where?")
			return
		}
		id, ok := e.resolveObject(intent.Object)
		if !ok {
			return
		}
		if err := e.World.Approach(id); err != nil {
			e.say("You can't reach that.")
			return
		}
		e.say(fmt.Sprintf("You approach the %s.", e.Defs.ObjectName(id)))

	case "talk":
		if intent.Object == "" {
			if _, ok := e.World.Focused(); !ok {
				e.say("Talk to whom?")
				return
			}
			e.talkFocused()
			return
		}
		id, ok := e.resolveObject(intent.Object)
		if !ok {
			return
		}
		if err := e.World.Approach(id); err != nil {
			e.say("You can't reach that.")
			return
		}
		e.talkFocused()

	case "leave":
		if _, ok := e.World.Focused(); !ok {
			e.say("You aren't near anything.")
			return
		}
		e.World.Leave()
		e.say("You step back into the middle of the hub.")

	case "choose":
		e.say("There's nothing to choose right now.")

	case "quests":
		e.journal()

	case "time":
		e.tellTime()

	case "wait":
		e.wait(intent.Object)

	default:
		e.say(fmt.Sprintf("I don't know how to %q.", intent.Verb))
	}
}

func (e *Engine) talkFocused() {
	o, _ := e.World.Focused()
	if o.Def().Knot == "" {
		e.say(fmt.Sprintf("There's nothing to do with the %s.", e.Defs.ObjectName(o.ObjectID())))
		return
	}
	e.Input.Submit()
}

func (e *Engine) resolveObject(name string) (string, bool) {
	var defs []types.ObjectDef
	for _, o := range e.World.Available() {
		defs = append(defs, o.Def())
	}
	id, err := resolve.Resolve(defs, name)
	if err != nil {
		e.say(err.Error())
		return "", false
	}
	return id, true
}

func (e *Engine) describeHub() {
	if e.Defs.Game.Title != "" {
		e.say(e.Defs.Game.Title)
	}
	e.say(fmt.Sprintf("It is %s, %s.", e.Clock.TimeOfDay(), e.Clock))

	var names []string
	for _, o := range e.World.Available() {
		names = append(names, e.Defs.ObjectName(o.ObjectID()))
	}
	if len(names) == 0 {
		e.say("There is nothing left to look at.")
	} else {
		e.say("You can see: " + strings.Join(names, ", ") + ".")
	}
	if o, ok := e.World.Focused(); ok {
		e.say(fmt.Sprintf("You are standing by the %s.", e.Defs.ObjectName(o.ObjectID())))
	}
}

func (e *Engine) journal() {
	var lines []string
	for _, id := range e.Quests.Quests() {
		st, _ := e.Quests.State(id)
		if st == types.RequirementsNotMet {
			continue
		}
		line := fmt.Sprintf("  %s: %s", e.Defs.QuestName(id), st)
		if p, ok := e.Quests.ActiveStep(id); ok {
			line += fmt.Sprintf(" (%s %d/%d)", p.StepID, p.Count, p.Target)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		e.say("Your journal is empty.")
		return
	}
	e.say("Quests:")
	e.out = append(e.out, lines...)
}

func (e *Engine) tellTime() {
	e.say(fmt.Sprintf("%s (%s).", e.Clock, e.Clock.TimeOfDay()))
}

func (e *Engine) wait(arg string) {
	hours := 1
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > 24 {
			e.say("Wait how many hours? (1-24)")
			return
		}
		hours = n
	}
	if e.hourLength > 0 {
		e.Tasks.Tick(time.Duration(hours) * e.hourLength)
	} else {
		for i := 0; i < hours; i++ {
			e.Clock.AdvanceHour()
		}
	}
	e.say(fmt.Sprintf("Time passes. It is now %s.", e.Clock))
}

func (e *Engine) applyRewards(def types.QuestDef) {
	effects.Apply(def.Rewards, effects.Context{
		Bus:      e.Bus,
		Counters: e.progress,
		Vars:     e.Vars,
		Log:      e.log,
		QuestID:  def.ID,
	})
}

func (e *Engine) say(line string) {
	e.out = append(e.out, line)
}

// subscribeOutput turns bus traffic into player-facing lines and trace
// entries.
func (e *Engine) subscribeOutput() {
	bus.Subscribe(e.Bus, events.DisplayDialogueTopic, func(d events.DisplayDialogue) {
		if d.Line != "" {
			e.say(d.Line)
		}
		e.choices = d.Choices
	})
	bus.Subscribe(e.Bus, events.DialogueFinishedTopic, func(events.DialogueFinished) {
		e.choices = nil
	})
	bus.Subscribe(e.Bus, events.OutputTopic, func(o events.Output) {
		e.say(o.Text)
	})
	bus.Subscribe(e.Bus, events.QuestStateChangedTopic, func(c events.QuestStateChanged) {
		if e.restoring || c.From == c.State {
			return
		}
		name := e.Defs.QuestName(c.ID)
		switch c.State {
		case types.CanStart:
			e.say(fmt.Sprintf("[New quest available: %s]", name))
		case types.InProgress:
			e.say(fmt.Sprintf("[Quest started: %s]", name))
		case types.CanFinish:
			e.say(fmt.Sprintf("[Quest ready to turn in: %s]", name))
		case types.Finished:
			e.say(fmt.Sprintf("[Quest complete: %s]", name))
		}
	})
	bus.Subscribe(e.Bus, events.QuestStepProgressTopic, func(p events.QuestStepProgress) {
		if p.Count < p.Target {
			e.say(fmt.Sprintf("[%s: %d/%d]", e.Defs.QuestName(p.QuestID), p.Count, p.Target))
		}
	})

	traceTopic(e, events.SubmitPressedTopic)
	traceTopic(e, events.ChoiceIndexUpdatedTopic)
	traceTopic(e, events.InputContextChangedTopic)
	traceTopic(e, events.DialogueStartedTopic)
	traceTopic(e, events.DialogueFinishedTopic)
	traceTopic(e, events.StartQuestTopic)
	traceTopic(e, events.AdvanceQuestTopic)
	traceTopic(e, events.FinishQuestTopic)
	traceTopic(e, events.QuestStateChangedTopic)
	traceTopic(e, events.ObjectCleanedTopic)
	traceTopic(e, events.ClockTickTopic)
}

func traceTopic[T any](e *Engine, t bus.Topic[T]) {
	bus.Subscribe(e.Bus, t, func(p T) {
		e.trace = append(e.trace, fmt.Sprintf("%s %+v", t.Name(), p))
	})
}

// ErrInDialogue is returned by Load while a dialogue session is active.
var ErrInDialogue = errors.New("cannot load during a conversation")

// Save captures the game's progress.
func (e *Engine) Save() ([]byte, error) {
	sd := &save.SaveData{
		Version:   e.Defs.Game.Version,
		Game:      e.Defs.Game.Title,
		Quests:    e.Quests.Snapshot(),
		Variables: e.Vars.Snapshot(),
		Consumed:  e.World.Consumed(),
		Day:       e.Clock.Day(),
		Hour:      e.Clock.Hour(),
		Log:       e.CommandLog,
	}
	if o, ok := e.World.Focused(); ok {
		sd.Focus = o.ObjectID()
	}
	if lister, ok := e.progress.(interface{ All() (map[string]int, error) }); ok {
		counters, err := lister.All()
		if err != nil {
			return nil, fmt.Errorf("save counters: %w", err)
		}
		sd.Counters = counters
	}
	return save.Save(sd)
}

// Load restores progress written by Save.
func (e *Engine) Load(data []byte) (*save.SaveData, error) {
	if e.Dialogue.Playing() {
		return nil, ErrInDialogue
	}
	sd, err := save.Load(data)
	if err != nil {
		return nil, err
	}

	e.restoring = true
	defer func() { e.restoring = false }()

	e.World.Restore(sd.Consumed)
	e.Vars.Restore(sd.Variables)
	e.Quests.Restore(sd.Quests)
	for key, v := range sd.Counters {
		if err := e.progress.Set(key, v); err != nil {
			return nil, fmt.Errorf("load counters: %w", err)
		}
	}
	e.Clock.Set(sd.Day, sd.Hour)
	if sd.Focus != "" {
		if err := e.World.Approach(sd.Focus); err != nil {
			e.log.Warn("saved focus", "error", err)
		}
	} else {
		e.World.Leave()
	}
	e.CommandLog = append([]string(nil), sd.Log...)
	e.out, e.trace = nil, nil
	return sd, nil
}

// Counters returns every persisted counter, or nil when the progress store
// cannot list them.
func (e *Engine) Counters() map[string]int {
	lister, ok := e.progress.(interface{ All() (map[string]int, error) })
	if !ok {
		return nil
	}
	all, err := lister.All()
	if err != nil {
		e.log.Warn("list counters", "error", err)
		return nil
	}
	return all
}

type memCounters map[string]int

func (m memCounters) Get(key string) (int, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memCounters) Set(key string, value int) error {
	m[key] = value
	return nil
}

func (m memCounters) Add(key string, delta int) (int, error) {
	m[key] += delta
	return m[key], nil
}

func (m memCounters) All() (map[string]int, error) {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}
