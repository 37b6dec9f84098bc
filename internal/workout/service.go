// Package workout keeps per-stream exercise sessions and records finished
// sets.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/models"
	"github.com/kdimtricp/repcoach/internal/pipeline"
	"github.com/kdimtricp/repcoach/internal/pose"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMode     = exercise.ErrInvalidMode
)

// SetRecorder persists finished sets.
type SetRecorder interface {
	RecordSet(ctx context.Context, set *models.WorkoutSet) error
}

// Publisher forwards events to an external bus.
type Publisher interface {
	Publish(sessionID, eventType string, payload any) error
}

type Config struct {
	// UpdateBuffer is the size of each session's Updates channel.
	UpdateBuffer int
}

type Service struct {
	processor *pipeline.Processor
	recorder  SetRecorder
	publisher Publisher
	buffer    int

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

// NewService creates a session service. recorder and publisher may be nil.
func NewService(processor *pipeline.Processor, recorder SetRecorder, publisher Publisher, config Config) *Service {
	if config.UpdateBuffer == 0 {
		config.UpdateBuffer = 100
	}
	if processor == nil {
		processor = pipeline.New(nil, nil, nil)
	}

	return &Service{
		processor: processor,
		recorder:  recorder,
		publisher: publisher,
		buffer:    config.UpdateBuffer,
		sessions:  make(map[string]*Session),
	}
}

func (s *Service) StartSession(ctx context.Context, mode exercise.Mode) (*Session, error) {
	if mode.Key() == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}

	now := time.Now()
	session := &Session{
		ID:           uuid.New().String(),
		StartedAt:    now,
		Updates:      make(chan Update, s.buffer),
		state:        exercise.NewState(mode),
		setStartedAt: now,
	}

	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	slog.Info("session started", "session", session.ID, "mode", mode.Key())
	return session, nil
}

func (s *Service) GetSession(id string) (*Session, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, exists := s.sessions[id]
	return session, exists
}

// ListSessions returns every open session, oldest first.
func (s *Service) ListSessions() []Info {
	s.sessionsMu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessionsMu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.snapshot())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

func (s *Service) Snapshot(id string) (Info, error) {
	session, ok := s.GetSession(id)
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	return session.snapshot(), nil
}

func (s *Service) SetRunning(id string, running bool) (exercise.State, error) {
	return s.mutate(context.Background(), id, func(st exercise.State) exercise.State {
		st.Running = running
		return st
	}, false)
}

// SetMode switches the exercise. A set in progress is recorded first and the
// counter starts over. Selecting the current mode changes nothing.
func (s *Service) SetMode(ctx context.Context, id string, mode exercise.Mode) (exercise.State, error) {
	if mode.Key() == "" {
		return exercise.State{}, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	return s.mutate(ctx, id, func(st exercise.State) exercise.State {
		return exercise.SwitchMode(st, mode)
	}, true)
}

// Reset records the current set, if any reps were done, and zeroes the
// counter.
func (s *Service) Reset(ctx context.Context, id string) (exercise.State, error) {
	return s.mutate(ctx, id, exercise.Reset, true)
}

// mutate applies fn under the session's frame lock. When endsSet is true and
// fn zeroed a non-zero counter, the previous set is recorded.
func (s *Service) mutate(ctx context.Context, id string, fn func(exercise.State) exercise.State, endsSet bool) (exercise.State, error) {
	session, ok := s.GetSession(id)
	if !ok {
		return exercise.State{}, ErrSessionNotFound
	}

	session.frameMu.Lock()
	defer session.frameMu.Unlock()

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return exercise.State{}, ErrSessionNotFound
	}
	prev := session.state
	next := fn(prev)
	session.state = next

	var finished *models.WorkoutSet
	if endsSet && next != prev && next.Count == 0 {
		if prev.Count > 0 {
			finished = models.NewWorkoutSet(session.ID, prev.Mode.Key(), prev.Count, session.setStartedAt)
		}
		session.setStartedAt = time.Now()
	}
	if next != prev {
		session.publish(Update{Type: UpdateState, Data: next})
	}
	if finished != nil {
		session.publish(Update{Type: UpdateSet, Data: finished})
	}
	session.mu.Unlock()

	if finished != nil {
		s.recordSet(ctx, finished)
	}
	return next, nil
}

// ProcessFrame runs a camera frame through the pipeline and keeps the
// resulting state. On error the session state is left as it was.
func (s *Service) ProcessFrame(ctx context.Context, id string, frame pose.Frame) (exercise.State, pipeline.Output, error) {
	return s.process(id, func(st exercise.State) (exercise.State, pipeline.Output, error) {
		return s.processor.Process(ctx, st, frame)
	})
}

// ProcessLandmarks is ProcessFrame for clients that run pose estimation
// themselves. lm may be nil when no person was detected.
func (s *Service) ProcessLandmarks(ctx context.Context, id string, lm *pose.Landmarks) (exercise.State, pipeline.Output, error) {
	return s.process(id, func(st exercise.State) (exercise.State, pipeline.Output, error) {
		next, out := s.processor.ProcessLandmarks(st, lm)
		return next, out, nil
	})
}

func (s *Service) process(id string, run func(exercise.State) (exercise.State, pipeline.Output, error)) (exercise.State, pipeline.Output, error) {
	session, ok := s.GetSession(id)
	if !ok {
		return exercise.State{}, pipeline.Output{}, ErrSessionNotFound
	}

	session.frameMu.Lock()
	defer session.frameMu.Unlock()

	state, closed := session.currentState()
	if closed {
		return exercise.State{}, pipeline.Output{}, ErrSessionNotFound
	}

	next, out, err := run(state)
	if err != nil {
		return state, out, err
	}

	session.mu.Lock()
	session.state = next
	session.lastFrameAt = time.Now()
	if out.Skipped {
		session.framesSkipped++
	} else {
		session.framesProcessed++
	}

	var ev *RepEvent
	if !out.Skipped {
		ev = &RepEvent{
			SessionID: session.ID,
			Mode:      next.Mode.Key(),
			Count:     next.Count,
			Stage:     next.Stage.String(),
			Angle:     out.Angle,
			Feedback:  out.Feedback,
		}
		if next != state {
			session.publish(Update{Type: UpdateState, Data: next})
		}
		if out.RepCounted {
			session.publish(Update{Type: UpdateRep, Data: *ev})
		}
	}
	session.mu.Unlock()

	if ev != nil && out.RepCounted && s.publisher != nil {
		if err := s.publisher.Publish(session.ID, UpdateRep, ev); err != nil {
			slog.Warn("failed to publish rep", "session", session.ID, "error", err)
		}
	}

	return next, out, nil
}

// EndSession records the final set, closes Updates and forgets the session.
func (s *Service) EndSession(ctx context.Context, id string) (Info, error) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.sessionsMu.Unlock()

	if !ok {
		return Info{}, ErrSessionNotFound
	}

	session.frameMu.Lock()
	defer session.frameMu.Unlock()

	info := session.snapshot()

	session.mu.Lock()
	var finished *models.WorkoutSet
	if session.state.Count > 0 {
		finished = models.NewWorkoutSet(session.ID, session.state.Mode.Key(), session.state.Count, session.setStartedAt)
		session.publish(Update{Type: UpdateSet, Data: finished})
	}
	session.closed = true
	close(session.Updates)
	session.mu.Unlock()

	if finished != nil {
		s.recordSet(ctx, finished)
	}

	slog.Info("session ended", "session", id, "frames", info.FramesProcessed)
	return info, nil
}

// Close ends every open session.
func (s *Service) Close(ctx context.Context) {
	s.sessionsMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionsMu.RUnlock()

	for _, id := range ids {
		if _, err := s.EndSession(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("failed to end session", "session", id, "error", err)
		}
	}
}

func (s *Service) recordSet(ctx context.Context, set *models.WorkoutSet) {
	slog.Info("set completed", "session", set.SessionID, "mode", set.Mode, "reps", set.Reps)

	if s.recorder != nil {
		if err := s.recorder.RecordSet(ctx, set); err != nil {
			slog.Error("failed to record set", "session", set.SessionID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(set.SessionID, UpdateSet, set); err != nil {
			slog.Warn("failed to publish set", "session", set.SessionID, "error", err)
		}
	}
}
