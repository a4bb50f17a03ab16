package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"autoshorts/internal/domain"
)

// Slot is one of the two daily generation times.
type Slot string

const (
	SlotMorning Slot = "MORNING"
	SlotEvening Slot = "EVENING"
)

func (s Slot) Valid() bool {
	return s == SlotMorning || s == SlotEvening
}

// Category is the theme an automatic run for this slot generates.
func (s Slot) Category() Category {
	if s == SlotMorning {
		return CategorySchoolTips
	}
	return CategoryBusinessSuccess
}

// TimeOfDay is a wall-clock hour and minute. It encodes as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrInvalidArgument, s)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrInvalidArgument, s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant this time of day occurs on day's calendar date, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DayMarker is a calendar date (YYYY-MM-DD) used as a per-slot run key.
type DayMarker string

const dayLayout = "2006-01-02"

func DayOf(t time.Time) DayMarker {
	return DayMarker(t.Format(dayLayout))
}

func ParseDayMarker(s string) (DayMarker, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", fmt.Errorf("%w: day %q", domain.ErrInvalidArgument, s)
	}
	return DayMarker(s), nil
}

type AutomationConfig struct {
	Active         bool       `json:"active"`
	MorningSlot    TimeOfDay  `json:"morningSlot"`
	EveningSlot    TimeOfDay  `json:"eveningSlot"`
	LastMorningRun *DayMarker `json:"lastMorningRun"`
	LastEveningRun *DayMarker `json:"lastEveningRun"`
}

func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		Active:      true,
		MorningSlot: TimeOfDay{Hour: 8},
		EveningSlot: TimeOfDay{Hour: 18},
	}
}

func (c AutomationConfig) SlotTime(s Slot) TimeOfDay {
	if s == SlotMorning {
		return c.MorningSlot
	}
	return c.EveningSlot
}

func (c AutomationConfig) LastRun(s Slot) *DayMarker {
	if s == SlotMorning {
		return c.LastMorningRun
	}
	return c.LastEveningRun
}

// RanOn reports whether the slot's marker equals day.
func (c AutomationConfig) RanOn(s Slot, day DayMarker) bool {
	m := c.LastRun(s)
	return m != nil && *m == day
}

// MarkRun sets the slot's last-run marker.
func (c *AutomationConfig) MarkRun(s Slot, day DayMarker) {
	d := day
	if s == SlotMorning {
		c.LastMorningRun = &d
		return
	}
	c.LastEveningRun = &d
}

// PendingTask is the single catch-up task waiting to be run.
type PendingTask struct {
	Slot     Slot      `json:"slot"`
	RaisedAt time.Time `json:"raisedAt"`
}
