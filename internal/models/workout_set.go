package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutSet is one finished block of reps of a single exercise.
type WorkoutSet struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Reps      int       `json:"reps"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

func NewWorkoutSet(sessionID, mode string, reps int, startedAt time.Time) *WorkoutSet {
	return &WorkoutSet{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Mode:      mode,
		Reps:      reps,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
	}
}

// Duration is how long the set took.
func (s *WorkoutSet) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// ModeTotal aggregates reps for one exercise across all sets.
type ModeTotal struct {
	Mode string `json:"mode"`
	Sets int    `json:"sets"`
	Reps int    `json:"reps"`
}
