package schedule

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ErrInvalidWindow is returned when a window's start lies after its end.
var ErrInvalidWindow = errors.New("invalid window: start after end")

// Well-known window labels. The planner accepts any finite label set;
// these two are what the default configuration produces.
const (
	LabelMorning = "morning"
	LabelEvening = "evening"
)

// Window is a labeled daily time-of-day interval, bounds in minutes since
// midnight, both inclusive.
type Window struct {
	Label string
	Start int
	End   int
}

func (w Window) Valid() bool {
	return w.Start >= 0 && w.End <= 23*60+59 && w.Start <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d", w.Label, w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// ParseWindow builds a Window from "HH:MM" bounds.
func ParseWindow(label, startHHMM, endHHMM string) (Window, error) {
	sh, sm, err := ParseHHMM(startHHMM)
	if err != nil {
		return Window{}, err
	}
	eh, em, err := ParseHHMM(endHHMM)
	if err != nil {
		return Window{}, err
	}
	w := Window{Label: label, Start: sh*60 + sm, End: eh*60 + em}
	if !w.Valid() {
		return Window{}, fmt.Errorf("%w: %s", ErrInvalidWindow, w)
	}
	return w, nil
}

// PickRandomTime draws one uniformly-random time within the window,
// inclusive at both bounds, minute granularity.
//
// The draw happens once per (re)configuration, not once per occurrence:
// the chosen clock time stays fixed until the next Configure call.
func PickRandomTime(w Window) (hour, minute int, err error) {
	if !w.Valid() {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidWindow, w)
	}
	m := w.Start + rand.IntN(w.End-w.Start+1)
	return m / 60, m % 60, nil
}

// ParseHHMM parses a wall-clock "HH:MM" string.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
