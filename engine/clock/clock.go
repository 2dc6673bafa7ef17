// Package clock keeps the hub's day and hour. Hours advance on a repeating
// scheduler task; every change is published and persisted.
package clock

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nathoo/questweave/engine/bus"
	"github.com/nathoo/questweave/engine/events"
	"github.com/nathoo/questweave/engine/tasks"
)

const (
	HoursPerDay = 24
	DawnHour    = 6
	DuskHour    = 18

	// Owner is the scheduler owner of the clock's task.
	Owner = "clock"

	keyDay  = "clock.day"
	keyHour = "clock.hour"
)

// Store persists the counters. progress.Store satisfies it.
type Store interface {
	Get(key string) (int, bool, error)
	Set(key string, value int) error
}

// Clock counts days from 1 and hours 0-23.
type Clock struct {
	bus   *bus.Bus
	log   *slog.Logger
	store Store
	day   int
	hour  int
}

// New loads the clock from store (day 1, hour startHour when nothing is
// stored) and schedules an hour to pass every hourLength of ticked time. A
// nil store keeps the clock in memory.
func New(b *bus.Bus, sched *tasks.Scheduler, store Store, hourLength time.Duration, startHour int, log *slog.Logger) (*Clock, error) {
	c := &Clock{bus: b, log: log, store: store, day: 1, hour: startHour % HoursPerDay}
	if store != nil {
		if v, ok, err := store.Get(keyDay); err != nil {
			return nil, fmt.Errorf("load clock: %w", err)
		} else if ok {
			c.day = v
		}
		if v, ok, err := store.Get(keyHour); err != nil {
			return nil, fmt.Errorf("load clock: %w", err)
		} else if ok {
			c.hour = v % HoursPerDay
		}
	}
	if hourLength > 0 {
		sched.Every(Owner, hourLength, c.AdvanceHour)
	}
	return c, nil
}

// Day returns the current day, starting at 1.
func (c *Clock) Day() int { return c.day }

// Hour returns the current hour (0-23).
func (c *Clock) Hour() int { return c.hour }

// AdvanceHour moves the clock forward one hour, rolling the day at
// midnight.
func (c *Clock) AdvanceHour() {
	c.hour++
	if c.hour >= HoursPerDay {
		c.hour = 0
		c.day++
	}
	c.changed()
}

// Set moves the clock to day and hour, used when loading a save.
func (c *Clock) Set(day, hour int) {
	if day < 1 {
		day = 1
	}
	c.day, c.hour = day, ((hour%HoursPerDay)+HoursPerDay)%HoursPerDay
	c.changed()
}

func (c *Clock) changed() {
	if c.store != nil {
		if err := c.store.Set(keyDay, c.day); err != nil {
			c.log.Warn("persist clock", "error", err)
		}
		if err := c.store.Set(keyHour, c.hour); err != nil {
			c.log.Warn("persist clock", "error", err)
		}
	}
	bus.Publish(c.bus, events.ClockTickTopic, events.ClockTick{Day: c.day, Hour: c.hour})
}

// IsDay returns true from dawn until dusk.
func (c *Clock) IsDay() bool {
	return c.hour >= DawnHour && c.hour < DuskHour
}

// TimeOfDay names the current period.
func (c *Clock) TimeOfDay() string {
	switch {
	case c.hour < 6:
		return "night"
	case c.hour < 12:
		return "morning"
	case c.hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// String formats the clock as "Day 2, 14:00".
func (c *Clock) String() string {
	return fmt.Sprintf("Day %d, %02d:00", c.day, c.hour)
}
