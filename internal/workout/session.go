package workout

import (
	"sync"
	"time"

	"github.com/kdimtricp/repcoach/internal/exercise"
)

// Update is pushed to a session's Updates channel for live viewers.
type Update struct {
	Type string
	Data interface{}
}

const (
	UpdateState = "state"
	UpdateRep   = "rep"
	UpdateSet   = "set"
)

// RepEvent describes one processed frame that changed the counter.
type RepEvent struct {
	SessionID string  `json:"session_id"`
	Mode      string  `json:"mode"`
	Count     int     `json:"count"`
	Stage     string  `json:"stage"`
	Angle     float64 `json:"angle"`
	Feedback  string  `json:"feedback"`
}

// Session is one camera stream. Frames for a session are processed one at a
// time; different sessions are independent.
type Session struct {
	ID        string
	StartedAt time.Time
	Updates   chan Update

	// frameMu serialises everything that reads and writes state across a
	// pipeline call.
	frameMu sync.Mutex

	mu              sync.Mutex
	state           exercise.State
	setStartedAt    time.Time
	lastFrameAt     time.Time
	framesProcessed int
	framesSkipped   int
	closed          bool
}

// Info is a point-in-time copy of a session for status output.
type Info struct {
	ID              string         `json:"id"`
	State           exercise.State `json:"state"`
	StartedAt       time.Time      `json:"started_at"`
	SetStartedAt    time.Time      `json:"set_started_at"`
	LastFrameAt     *time.Time     `json:"last_frame_at,omitempty"`
	FramesProcessed int            `json:"frames_processed"`
	FramesSkipped   int            `json:"frames_skipped"`
}

func (s *Session) snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:              s.ID,
		State:           s.state,
		StartedAt:       s.StartedAt,
		SetStartedAt:    s.setStartedAt,
		FramesProcessed: s.framesProcessed,
		FramesSkipped:   s.framesSkipped,
	}
	if !s.lastFrameAt.IsZero() {
		last := s.lastFrameAt
		info.LastFrameAt = &last
	}
	return info
}

func (s *Session) currentState() (exercise.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.closed
}

// publish sends without blocking; slow viewers miss updates. Caller holds mu.
func (s *Session) publish(u Update) {
	if s.closed {
		return
	}
	select {
	case s.Updates <- u:
	default:
	}
}
