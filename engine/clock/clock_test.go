package clock

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/tasks"
)

type memStore struct {
	m   map[string]int
	err error
}

func (s *memStore) Get(key string) (int, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memStore) Set(key string, v int) error {
	s.m[key] = v
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdvanceOnTick(t *testing.T) {
	b := bus.New()
	sched := tasks.New()
	store := &memStore{m: map[string]int{}}
	c, err := New(b, sched, store, time.Minute, 22, discard())
	if err != nil {
		t.Fatal(err)
	}
	var ticks []events.ClockTick
	bus.Subscribe(b, events.ClockTickTopic, func(e events.ClockTick) { ticks = append(ticks, e) })

	sched.Tick(2 * time.Minute)

	want := []events.ClockTick{{Day: 1, Hour: 23}, {Day: 2, Hour: 0}}
	if len(ticks) != 2 || ticks[0] != want[0] || ticks[1] != want[1] {
		t.Errorf("ticks = %+v, want %+v", ticks, want)
	}
	if store.m[keyDay] != 2 || store.m[keyHour] != 0 {
		t.Errorf("persisted = %v", store.m)
	}
	if c.String() != "Day 2, 00:00" {
		t.Errorf("String = %q", c.String())
	}
}

func TestLoadsFromStore(t *testing.T) {
	store := &memStore{m: map[string]int{keyDay: 5, keyHour: 13}}
	c, err := New(bus.New(), tasks.New(), store, 0, 8, discard())
	if err != nil {
		t.Fatal(err)
	}
	if c.Day() != 5 || c.Hour() != 13 {
		t.Errorf("clock = %s", c)
	}
	if !c.IsDay() || c.TimeOfDay() != "afternoon" {
		t.Errorf("IsDay=%v TimeOfDay=%q", c.IsDay(), c.TimeOfDay())
	}
}

func TestLoadError(t *testing.T) {
	store := &memStore{err: errors.New("disk gone")}
	if _, err := New(bus.New(), tasks.New(), store, time.Minute, 0, discard()); err == nil {
		t.Error("expected load error")
	}
}

func TestZeroHourLengthSchedulesNothing(t *testing.T) {
	sched := tasks.New()
	if _, err := New(bus.New(), sched, nil, 0, 0, discard()); err != nil {
		t.Fatal(err)
	}
	if sched.Pending(Owner) != 0 {
		t.Error("clock task scheduled with zero hour length")
	}
}

func TestSet(t *testing.T) {
	c, _ := New(bus.New(), tasks.New(), nil, 0, 0, discard())
	c.Set(0, -1)
	if c.Day() != 1 || c.Hour() != 23 {
		t.Errorf("clock = %s", c)
	}
	if c.TimeOfDay() != "evening" || c.IsDay() {
		t.Errorf("TimeOfDay = %q", c.TimeOfDay())
	}
}
