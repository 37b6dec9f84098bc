// Package exercise implements repetition counting and form feedback for a
// single exercise stream. Everything here is pure: callers pass the current
// State in and keep the State that comes back.
package exercise

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidMode = errors.New("invalid exercise mode")

type Mode int

const (
	Squat Mode = iota
	Pushup
)

// Modes lists every supported exercise in display order.
var Modes = []Mode{Squat, Pushup}

func (m Mode) String() string {
	switch m {
	case Squat:
		return "Squat"
	case Pushup:
		return "Push-up"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Key is the lower-case identifier used in URLs, config files and storage.
func (m Mode) Key() string {
	switch m {
	case Squat:
		return "squat"
	case Pushup:
		return "push-up"
	default:
		return ""
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "squat", "squats":
		return Squat, nil
	case "push-up", "pushup", "push_up", "push-ups", "pushups":
		return Pushup, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if m.Key() == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.Key()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Stage is the hysteresis state gating rep counting.
type Stage int

const (
	Up Stage = iota
	Down
)

func (s Stage) String() string {
	if s == Down {
		return "DOWN"
	}
	return "UP"
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "UP":
		*s = Up
	case "DOWN":
		*s = Down
	default:
		return fmt.Errorf("invalid stage %q", string(text))
	}
	return nil
}

// State is everything that survives between frames of one stream.
type State struct {
	Mode    Mode  `json:"mode"`
	Running bool  `json:"running"`
	Count   int   `json:"count"`
	Stage   Stage `json:"stage"`
}

// NewState returns a paused, zeroed state for mode.
func NewState(mode Mode) State {
	return State{Mode: mode, Stage: Up}
}

// Reset zeroes the counter and returns to UP; mode and running are kept.
func Reset(s State) State {
	s.Count = 0
	s.Stage = Up
	return s
}

// SwitchMode starts a fresh set when the exercise changes. A half-finished
// rep of the previous exercise is never carried over.
func SwitchMode(s State, mode Mode) State {
	if s.Mode == mode {
		return s
	}
	s.Mode = mode
	return Reset(s)
}
