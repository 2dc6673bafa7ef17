// Package story is the narrative script runtime: it walks compiled knots
// line by line, stops at choice points, runs variable assignments and
// external function calls, and notifies observers of script-side variable
// changes.
package story

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/questweave/engine/rules"
	"github.com/nathoo/questweave/types"
)

// NodeKind identifies a compiled script instruction.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeSet
	NodeCall
	NodeDivert
	NodeChoice
	NodeIf
	NodeEnd
)

// Node is one compiled script instruction.
type Node struct {
	Kind   NodeKind
	Text   string           // NodeText line, NodeChoice label
	Var    string           // NodeSet target
	Value  types.Value      // NodeSet value
	Func   string           // NodeCall function name
	Args   []types.Value    // NodeCall arguments
	Target string           // NodeDivert knot
	Cond   *types.Condition // NodeIf condition, optional NodeChoice gate
	Body   []Node           // NodeChoice body, NodeIf then-branch
	Else   []Node           // NodeIf else-branch
}

// Def is a compiled story: knots plus declared global variables.
type Def struct {
	Knots   map[string][]Node
	Globals map[string]types.Value
}

// ExternalFunc is a Go callback the script can invoke by name.
type ExternalFunc func(args []types.Value) error

// Observer receives script-side variable assignments.
type Observer = func(name string, v types.Value)

var (
	ErrUnknownKnot     = errors.New("unknown knot")
	ErrCannotContinue  = errors.New("story cannot continue")
	ErrNoSuchChoice    = errors.New("no such choice")
	ErrUnboundFunction = errors.New("unbound external function")
	ErrUnknownVariable = errors.New("unknown variable")
)

type frame struct {
	nodes []Node
	pc    int
}

// Story is one interpreter instance. It is not safe for concurrent use.
type Story struct {
	def       *Def
	globals   map[string]types.Value
	temps     map[string]types.Value
	stack     []frame
	fns       map[string]ExternalFunc
	observers map[int]Observer
	nextObs   int
}

// New creates a story positioned nowhere; call ChoosePath before Continue.
func New(def *Def) *Story {
	s := &Story{
		def:       def,
		fns:       map[string]ExternalFunc{},
		observers: map[int]Observer{},
	}
	s.ResetState()
	return s
}

// ResetState clears the flow position and temporaries and restores every
// global variable to its declared value. Bindings and observers survive.
func (s *Story) ResetState() {
	s.stack = nil
	s.temps = map[string]types.Value{}
	s.globals = make(map[string]types.Value, len(s.def.Globals))
	for name, v := range s.def.Globals {
		s.globals[name] = v
	}
}

// HasKnot reports whether the story defines knot.
func (s *Story) HasKnot(knot string) bool {
	_, ok := s.def.Knots[knot]
	return ok
}

// ChoosePath jumps the flow to the start of knot.
func (s *Story) ChoosePath(knot string) error {
	nodes, ok := s.def.Knots[knot]
	if !ok {
		return fmt.Errorf("choose path %q: %w", knot, ErrUnknownKnot)
	}
	s.stack = []frame{{nodes: nodes}}
	return nil
}

// CanContinue reports whether Continue can make progress, i.e. the flow is
// neither exhausted nor waiting at a choice point.
func (s *Story) CanContinue() bool {
	n := s.peek()
	return n != nil && n.Kind != NodeChoice
}

// Continue runs the flow up to and including the next line of text and
// returns it, together with any logic that trails the line up to the next
// text or choice point. If the flow ends or reaches a choice point before
// any text, the returned line is empty.
func (s *Story) Continue() (string, error) {
	if !s.CanContinue() {
		return "", ErrCannotContinue
	}
	for {
		n := s.current()
		if n == nil || n.Kind == NodeChoice {
			return "", nil
		}
		s.step()
		if n.Kind == NodeText {
			line := s.interpolate(n.Text)
			return line, s.runLogic()
		}
		if err := s.exec(n); err != nil {
			return "", err
		}
	}
}

// runLogic executes instructions until the next text, choice point or the
// end of the flow.
func (s *Story) runLogic() error {
	for {
		n := s.current()
		if n == nil || n.Kind == NodeText || n.Kind == NodeChoice {
			return nil
		}
		s.step()
		if err := s.exec(n); err != nil {
			return err
		}
	}
}

func (s *Story) exec(n *Node) error {
	switch n.Kind {
	case NodeSet:
		s.assign(n.Var, n.Value)

	case NodeCall:
		fn, ok := s.fns[n.Func]
		if !ok {
			return fmt.Errorf("call %s: %w", n.Func, ErrUnboundFunction)
		}
		if err := fn(n.Args); err != nil {
			return fmt.Errorf("call %s: %w", n.Func, err)
		}

	case NodeDivert:
		if err := s.ChoosePath(n.Target); err != nil {
			return fmt.Errorf("divert: %w", err)
		}

	case NodeIf:
		branch := n.Else
		if n.Cond == nil || rules.EvalCondition(*n.Cond, s) {
			branch = n.Body
		}
		if len(branch) > 0 {
			s.stack = append(s.stack, frame{nodes: branch})
		}

	case NodeEnd:
		s.stack = nil
	}
	return nil
}

// CurrentChoices returns the choices offered at the current choice point,
// with gated choices filtered out. Indices are positions in the returned
// slice.
func (s *Story) CurrentChoices() []types.Choice {
	group := s.choiceGroup()
	choices := make([]types.Choice, 0, len(group))
	for i, n := range group {
		choices = append(choices, types.Choice{Index: i, Text: s.interpolate(n.Text)})
	}
	return choices
}

// ChooseChoiceIndex commits choice i of CurrentChoices. Flow continues into
// the choice body and then past the whole choice group.
func (s *Story) ChooseChoiceIndex(i int) error {
	group := s.choiceGroup()
	if i < 0 || i >= len(group) {
		return fmt.Errorf("choose %d of %d: %w", i, len(group), ErrNoSuchChoice)
	}
	chosen := group[i]

	f := &s.stack[len(s.stack)-1]
	for f.pc < len(f.nodes) && f.nodes[f.pc].Kind == NodeChoice {
		f.pc++
	}
	if len(chosen.Body) > 0 {
		s.stack = append(s.stack, frame{nodes: chosen.Body})
	}
	return nil
}

// BindExternalFunction registers fn under name, replacing any previous
// binding.
func (s *Story) BindExternalFunction(name string, fn ExternalFunc) {
	s.fns[name] = fn
}

// UnbindExternalFunction removes a binding. Unknown names are ignored.
func (s *Story) UnbindExternalFunction(name string) {
	delete(s.fns, name)
}

// VariableNames returns the declared global variable names, sorted.
func (s *Story) VariableNames() []string {
	names := make([]string, 0, len(s.globals))
	for name := range s.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variable returns a global, falling back to a script temporary.
func (s *Story) Variable(name string) (types.Value, bool) {
	if v, ok := s.globals[name]; ok {
		return v, true
	}
	v, ok := s.temps[name]
	return v, ok
}

// SetVariable sets a declared global from the host side. Observers are not
// notified; they only see script-side assignments.
func (s *Story) SetVariable(name string, v types.Value) error {
	if _, ok := s.globals[name]; !ok {
		return fmt.Errorf("set %q: %w", name, ErrUnknownVariable)
	}
	if !v.Valid() {
		return fmt.Errorf("set %q: invalid value", name)
	}
	s.globals[name] = v
	return nil
}

// QuestState reads the "<id>State" variable so script conditions can branch
// on quest progress.
func (s *Story) QuestState(id string) (types.QuestState, bool) {
	v, ok := s.Variable(id + "State")
	if !ok || v.Kind != types.KindString {
		return types.RequirementsNotMet, false
	}
	return types.ParseQuestState(v.Str)
}

// ObserveVariables registers fn for script-side assignments and returns a
// function that detaches it.
func (s *Story) ObserveVariables(fn Observer) (cancel func()) {
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	return func() { delete(s.observers, id) }
}

func (s *Story) assign(name string, v types.Value) {
	if _, ok := s.globals[name]; ok {
		s.globals[name] = v
	} else {
		s.temps[name] = v
	}
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := s.observers[id]; ok {
			fn(name, v)
		}
	}
}

// current pops finished frames and returns the next instruction, or nil
// when the flow is exhausted.
func (s *Story) current() *Node {
	for len(s.stack) > 0 {
		f := &s.stack[len(s.stack)-1]
		if f.pc < len(f.nodes) {
			return &f.nodes[f.pc]
		}
		s.stack = s.stack[:len(s.stack)-1]
	}
	return nil
}

// peek is current without popping.
func (s *Story) peek() *Node {
	for i := len(s.stack) - 1; i >= 0; i-- {
		f := &s.stack[i]
		if f.pc < len(f.nodes) {
			return &f.nodes[f.pc]
		}
	}
	return nil
}

func (s *Story) step() {
	s.stack[len(s.stack)-1].pc++
}

// choiceGroup returns the visible choice nodes at the current position.
func (s *Story) choiceGroup() []*Node {
	if s.current() == nil {
		return nil
	}
	f := &s.stack[len(s.stack)-1]
	var group []*Node
	for i := f.pc; i < len(f.nodes) && f.nodes[i].Kind == NodeChoice; i++ {
		n := &f.nodes[i]
		if n.Cond != nil && !rules.EvalCondition(*n.Cond, s) {
			continue
		}
		group = append(group, n)
	}
	return group
}

// interpolate replaces {name} with the variable's value. Unknown names are
// left as written.
func (s *Story) interpolate(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	var b strings.Builder
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			break
		}
		name := text[open+1 : open+end]
		b.WriteString(text[:open])
		if v, ok := s.Variable(name); ok {
			b.WriteString(v.String())
		} else {
			b.WriteString(text[open : open+end+1])
		}
		text = text[open+end+1:]
	}
	b.WriteString(text)
	return b.String()
}
