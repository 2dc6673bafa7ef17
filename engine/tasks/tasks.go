// Package tasks is a cooperative scheduler for deferred and repeating work.
// Tasks advance only when the host loop calls Tick and run on the ticking
// goroutine, so they may touch the bus and game state freely.
package tasks

import "time"

// ID identifies one scheduled task.
type ID uint64

type task struct {
	id       ID
	owner    string
	duration time.Duration
	elapsed  time.Duration
	repeat   bool
	fn       func()
	done     bool
}

// Scheduler holds pending tasks in scheduling order.
type Scheduler struct {
	tasks  []*task
	nextID ID
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// After runs fn once, d of ticked time from now. owner groups tasks for
// Cancel.
func (s *Scheduler) After(owner string, d time.Duration, fn func()) ID {
	return s.add(owner, d, fn, false)
}

// Every runs fn each time d of ticked time elapses. A non-positive d runs fn
// once per Tick.
func (s *Scheduler) Every(owner string, d time.Duration, fn func()) ID {
	return s.add(owner, d, fn, true)
}

func (s *Scheduler) add(owner string, d time.Duration, fn func(), repeat bool) ID {
	s.nextID++
	s.tasks = append(s.tasks, &task{
		id:       s.nextID,
		owner:    owner,
		duration: d,
		repeat:   repeat,
		fn:       fn,
	})
	return s.nextID
}

// Cancel drops every task owned by owner and returns how many were pending.
func (s *Scheduler) Cancel(owner string) int {
	n := 0
	for _, t := range s.tasks {
		if t.owner == owner && !t.done {
			t.done = true
			n++
		}
	}
	s.compact()
	return n
}

// CancelTask drops a single task. Unknown or finished ids are ignored.
func (s *Scheduler) CancelTask(id ID) {
	for _, t := range s.tasks {
		if t.id == id {
			t.done = true
		}
	}
	s.compact()
}

// Tick advances every task scheduled before this call by dt and runs the
// ones that come due. Tasks scheduled from inside a task start counting on
// the next Tick; tasks cancelled from inside a task do not run.
func (s *Scheduler) Tick(dt time.Duration) {
	snapshot := make([]*task, len(s.tasks))
	copy(snapshot, s.tasks)

	for _, t := range snapshot {
		if t.done {
			continue
		}
		t.elapsed += dt
		if t.duration <= 0 {
			t.done = !t.repeat
			t.fn()
			continue
		}
		for !t.done && t.elapsed >= t.duration {
			t.elapsed -= t.duration
			t.done = !t.repeat
			t.fn()
		}
	}
	s.compact()
}

// Pending returns the number of live tasks owned by owner.
func (s *Scheduler) Pending(owner string) int {
	n := 0
	for _, t := range s.tasks {
		if t.owner == owner && !t.done {
			n++
		}
	}
	return n
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	n := 0
	for _, t := range s.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

func (s *Scheduler) compact() {
	live := s.tasks[:0:0]
	for _, t := range s.tasks {
		if !t.done {
			live = append(live, t)
		}
	}
	s.tasks = live
}
