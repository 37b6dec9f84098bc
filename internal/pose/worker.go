package pose

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single framed message read from the worker.
const maxMessageSize = 64 << 20

// WorkerConfig describes the external pose worker process.
type WorkerConfig struct {
	WorkerID   string
	Command    string
	Args       []string
	Env        []string
	Confidence float64
	Timeout    time.Duration
}

// WorkerMetrics is a snapshot of worker health counters.
type WorkerMetrics struct {
	FramesSent    uint64    `json:"frames_sent"`
	PosesReturned uint64    `json:"poses_returned"`
	EmptyResults  uint64    `json:"empty_results"`
	Failures      uint64    `json:"failures"`
	AvgLatencyMS  float64   `json:"avg_latency_ms"`
	Restarts      uint64    `json:"restarts"`
	Running       bool      `json:"running"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

type workerRequest struct {
	FrameData []byte      `msgpack:"frame_data"`
	Width     int         `msgpack:"width"`
	Height    int         `msgpack:"height"`
	Meta      requestMeta `msgpack:"meta"`
}

type requestMeta struct {
	Seq        uint64  `msgpack:"seq"`
	Timestamp  string  `msgpack:"timestamp"`
	Confidence float64 `msgpack:"confidence"`
}

type workerResponse struct {
	Landmarks [][]float64    `msgpack:"landmarks"`
	Error     string         `msgpack:"error"`
	Timing    responseTiming `msgpack:"timing"`
}

type responseTiming struct {
	TotalMS float64 `msgpack:"total_ms"`
}

type roundTrip struct {
	resp workerResponse
	err  error
}

// WorkerEstimator runs pose estimation in an external process. Frames go to
// the process stdin and landmarks come back on stdout, both as msgpack
// messages behind a 4-byte big-endian length prefix. One frame is in flight
// at a time.
type WorkerEstimator struct {
	id         string
	command    string
	args       []string
	env        []string
	confidence float64
	timeout    time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// mu is held for a whole round trip, including one abandoned by its
	// caller, so every reply is read by the request that caused it.
	mu       sync.Mutex
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	isActive atomic.Bool
	closed   atomic.Bool

	framesSent     uint64
	posesReturned  uint64
	emptyResults   uint64
	failures       uint64
	totalLatencyMS uint64
	restarts       uint64
	lastSeenAt     atomic.Value // time.Time
}

func NewWorkerEstimator(cfg WorkerConfig) (*WorkerEstimator, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("pose worker command is required")
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "pose-worker"
	}

	return &WorkerEstimator{
		id:         cfg.WorkerID,
		command:    cfg.Command,
		args:       cfg.Args,
		env:        cfg.Env,
		confidence: cfg.Confidence,
		timeout:    cfg.Timeout,
	}, nil
}

func (w *WorkerEstimator) ID() string {
	return w.id
}

// Start spawns the worker process. The process lives until Close or until
// ctx is cancelled.
func (w *WorkerEstimator) Start(ctx context.Context) error {
	if w.isActive.Load() {
		return fmt.Errorf("pose worker already started")
	}

	w.parent = ctx
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.cmd = exec.CommandContext(w.ctx, w.command, w.args...)
	if len(w.env) > 0 {
		w.cmd.Env = append(os.Environ(), w.env...)
	}

	var err error
	if w.stdin, err = w.cmd.StdinPipe(); err != nil {
		return &EstimatorError{Op: "start", Err: err}
	}
	if w.stdout, err = w.cmd.StdoutPipe(); err != nil {
		return &EstimatorError{Op: "start", Err: err}
	}
	if w.stderr, err = w.cmd.StderrPipe(); err != nil {
		return &EstimatorError{Op: "start", Err: err}
	}

	if err := w.cmd.Start(); err != nil {
		return &EstimatorError{Op: "start", Err: err}
	}

	w.isActive.Store(true)
	w.lastSeenAt.Store(time.Now())

	w.wg.Add(2)
	go w.logStderr(w.stderr)
	go w.waitProcess(w.ctx, w.cmd)

	slog.Info("pose worker started",
		"worker_id", w.id,
		"command", w.command,
		"pid", w.cmd.Process.Pid,
		"confidence", w.confidence,
	)

	return nil
}

// Estimate sends one frame to the worker and waits for its landmarks. A
// caller that gives up early gets its context error at once while the reply
// is drained in the background. A worker that misses the timeout is
// restarted before the next frame is sent.
func (w *WorkerEstimator) Estimate(ctx context.Context, frame Frame) (*Landmarks, error) {
	w.mu.Lock()

	if !w.isActive.Load() {
		w.restartLocked("process exited")
	}
	if !w.isActive.Load() {
		w.mu.Unlock()
		return nil, &EstimatorError{Op: "send", Err: ErrWorkerNotRunning}
	}

	atomic.AddUint64(&w.framesSent, 1)

	req := workerRequest{
		FrameData: frame.Data,
		Width:     frame.Width,
		Height:    frame.Height,
		Meta: requestMeta{
			Seq:        frame.Seq,
			Timestamp:  frame.Timestamp.Format(time.RFC3339Nano),
			Confidence: w.confidence,
		},
	}

	done := make(chan roundTrip, 1)
	started := time.Now()
	stdin, stdout := w.stdin, w.stdout

	go func() {
		var rt roundTrip
		if err := writeMessage(stdin, req); err != nil {
			rt.err = &EstimatorError{Op: "send", Err: err}
		} else if err := readMessage(stdout, &rt.resp); err != nil {
			rt.err = &EstimatorError{Op: "receive", Err: err}
		}
		done <- rt
	}()

	timer := time.NewTimer(w.timeout)

	select {
	case rt := <-done:
		timer.Stop()
		w.mu.Unlock()
		if rt.err != nil {
			atomic.AddUint64(&w.failures, 1)
			return nil, rt.err
		}
		return w.handleResponse(rt.resp, started)

	case <-timer.C:
		atomic.AddUint64(&w.failures, 1)
		slog.Error("pose worker timed out",
			"worker_id", w.id,
			"frame_seq", frame.Seq,
			"timeout", w.timeout,
		)
		go w.settle(done, nil)
		return nil, &EstimatorError{Op: "receive", Err: context.DeadlineExceeded}

	case <-ctx.Done():
		atomic.AddUint64(&w.failures, 1)
		slog.Debug("pose request abandoned", "worker_id", w.id, "frame_seq", frame.Seq, "error", ctx.Err())
		go w.settle(done, timer)
		return nil, &EstimatorError{Op: "receive", Err: ctx.Err()}
	}
}

// settle finishes a round trip its caller abandoned and releases w.mu. The
// late reply is discarded. When timer is nil or fires first the worker is
// restarted.
func (w *WorkerEstimator) settle(done <-chan roundTrip, timer *time.Timer) {
	defer w.mu.Unlock()

	if timer != nil {
		select {
		case rt := <-done:
			timer.Stop()
			if rt.err == nil {
				w.lastSeenAt.Store(time.Now())
				return
			}
		case <-timer.C:
		}
	}

	w.restartLocked("timeout")
}

// restartLocked replaces the worker process. Callers hold w.mu.
func (w *WorkerEstimator) restartLocked(reason string) {
	if w.closed.Load() || w.parent == nil || w.parent.Err() != nil {
		return
	}

	m := w.Metrics()
	slog.Warn("restarting pose worker",
		"worker_id", w.id,
		"reason", reason,
		"last_seen_ago_ms", time.Since(m.LastSeenAt).Milliseconds(),
		"frames_sent", m.FramesSent,
	)

	w.kill()

	if err := w.Start(w.parent); err != nil {
		slog.Error("failed to restart pose worker", "worker_id", w.id, "error", err)
		return
	}
	atomic.AddUint64(&w.restarts, 1)
}

// kill stops the current process without a grace period and waits for its
// goroutines.
func (w *WorkerEstimator) kill() {
	w.isActive.Store(false)
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Watch restarts the worker whenever its process has died, checking every
// interval until ctx is done or the estimator is closed.
func (w *WorkerEstimator) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.closed.Load() {
				return
			}
			if w.isActive.Load() {
				continue
			}
			w.mu.Lock()
			if !w.isActive.Load() {
				w.restartLocked("process exited")
			}
			w.mu.Unlock()
		}
	}
}

func (w *WorkerEstimator) handleResponse(resp workerResponse, started time.Time) (*Landmarks, error) {
	w.lastSeenAt.Store(time.Now())

	latency := resp.Timing.TotalMS
	if latency <= 0 {
		latency = float64(time.Since(started).Milliseconds())
	}
	atomic.AddUint64(&w.totalLatencyMS, uint64(latency))

	if resp.Error != "" {
		atomic.AddUint64(&w.failures, 1)
		return nil, &EstimatorError{Op: "decode", Err: errors.New(resp.Error)}
	}

	if len(resp.Landmarks) == 0 {
		atomic.AddUint64(&w.emptyResults, 1)
		return nil, nil
	}

	for i, row := range resp.Landmarks {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				atomic.AddUint64(&w.failures, 1)
				return nil, &EstimatorError{
					Op:  "decode",
					Err: fmt.Errorf("landmark %d is not finite", i),
				}
			}
		}
	}

	lm := fromRows(resp.Landmarks)
	if !lm.Valid() {
		atomic.AddUint64(&w.failures, 1)
		return nil, &EstimatorError{
			Op:  "decode",
			Err: fmt.Errorf("expected %d landmarks, got %d", NumLandmarks, len(lm)),
		}
	}

	atomic.AddUint64(&w.posesReturned, 1)
	return &lm, nil
}

// logStderr forwards worker log lines, mapping "[LEVEL]" markers to slog levels.
func (w *WorkerEstimator) logStderr(stderr io.Reader) {
	defer w.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			slog.Error("pose worker error", "worker_id", w.id, "log", line)
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			slog.Warn("pose worker warning", "worker_id", w.id, "log", line)
		default:
			slog.Debug("pose worker log", "worker_id", w.id, "log", line)
		}
	}
}

// waitProcess reaps the worker so it never lingers as a zombie.
func (w *WorkerEstimator) waitProcess(ctx context.Context, cmd *exec.Cmd) {
	defer w.wg.Done()

	err := cmd.Wait()
	w.isActive.Store(false)

	if err == nil {
		slog.Info("pose worker exited cleanly", "worker_id", w.id)
		return
	}

	select {
	case <-ctx.Done():
		slog.Debug("pose worker exited (shutdown)", "worker_id", w.id)
	default:
		slog.Error("pose worker exited unexpectedly", "worker_id", w.id, "error", err)
	}
}

// Metrics returns current worker counters.
func (w *WorkerEstimator) Metrics() WorkerMetrics {
	returned := atomic.LoadUint64(&w.posesReturned)
	empty := atomic.LoadUint64(&w.emptyResults)
	total := atomic.LoadUint64(&w.totalLatencyMS)

	var avg float64
	if n := returned + empty; n > 0 {
		avg = float64(total) / float64(n)
	}

	var lastSeen time.Time
	if v := w.lastSeenAt.Load(); v != nil {
		lastSeen = v.(time.Time)
	}

	return WorkerMetrics{
		FramesSent:    atomic.LoadUint64(&w.framesSent),
		PosesReturned: returned,
		EmptyResults:  empty,
		Failures:      atomic.LoadUint64(&w.failures),
		AvgLatencyMS:  avg,
		Restarts:      atomic.LoadUint64(&w.restarts),
		Running:       w.isActive.Load(),
		LastSeenAt:    lastSeen,
	}
}

// Close stops the worker for good: stdin is closed so the process can exit on
// its own, then it is killed if still alive after a grace period. A frame in
// flight is allowed to finish first.
func (w *WorkerEstimator) Close() error {
	w.closed.Store(true)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cmd == nil || w.cancel == nil {
		return nil
	}
	if !w.isActive.Swap(false) {
		w.cancel()
		w.wg.Wait()
		return nil
	}

	slog.Info("stopping pose worker", "worker_id", w.id)

	if w.stdin != nil {
		w.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("pose worker stop timeout, killing process", "worker_id", w.id)
		w.cancel()
		<-done
	}
	w.cancel()

	slog.Info("pose worker stopped",
		"worker_id", w.id,
		"frames_sent", atomic.LoadUint64(&w.framesSent),
		"poses", atomic.LoadUint64(&w.posesReturned),
	)

	return nil
}

func writeMessage(wr io.Writer, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack: %w", err)
	}

	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))

	if _, err := wr.Write(prefix); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := wr.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

func readMessage(r io.Reader, v interface{}) error {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(prefix)
	if n > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal msgpack: %w", err)
	}
	return nil
}
