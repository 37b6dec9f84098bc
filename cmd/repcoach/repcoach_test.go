package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/pose"
)

func squatFrame(t *testing.T, deg float64) string {
	t.Helper()
	lm := make(pose.Landmarks, pose.NumLandmarks)
	rad := deg * math.Pi / 180
	lm[pose.RightKnee] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	lm[pose.RightAnkle] = pose.Landmark{X: 0.5, Y: 0.8, Visibility: 1}
	lm[pose.RightHip] = pose.Landmark{X: 0.5 + 0.3*math.Sin(rad), Y: 0.5 + 0.3*math.Cos(rad), Visibility: 1}

	data, err := json.Marshal(lm)
	if err != nil {
		t.Fatalf("Failed to marshal landmarks: %v", err)
	}
	return string(data)
}

func writeRecording(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write recording: %v", err)
	}
	return path
}

func TestReplay(t *testing.T) {
	lines := []string{
		"# recorded squats",
		squatFrame(t, 170),
		squatFrame(t, 70),
		"null",
		`{"landmarks": ` + squatFrame(t, 170) + `}`,
		"",
		squatFrame(t, 75),
	}

	rows, final, err := replay(strings.NewReader(strings.Join(lines, "\n")), exercise.Squat, exercise.DefaultProfiles())
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(rows) != 5 {
		t.Fatalf("Expected 5 frames, got %d", len(rows))
	}
	if final.Count != 2 || final.Stage != exercise.Down {
		t.Errorf("Expected 2 reps ending DOWN, got %+v", final)
	}
	if !rows[2].Skipped || rows[2].State.Count != 1 {
		t.Errorf("Expected null frame skipped with count kept, got %+v", rows[2])
	}
	if !rows[1].RepCounted || rows[1].Feedback != "Good depth!" {
		t.Errorf("Unexpected second frame: %+v", rows[1])
	}
}

func TestReplay_BadLine(t *testing.T) {
	_, _, err := replay(strings.NewReader("[[0.1, 0.2]]\n{oops\n"), exercise.Squat, exercise.DefaultProfiles())
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected error on line 2, got %v", err)
	}
}

func TestReplayCommand(t *testing.T) {
	path := writeRecording(t, []string{squatFrame(t, 170), squatFrame(t, 70), squatFrame(t, 170)})

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"replay", path, "--mode", "squat"})
	if err := root.Execute(); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Good depth!") || !strings.Contains(text, "reps over 3 frames") {
		t.Errorf("Unexpected output:\n%s", text)
	}
}

func TestCountCommand(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		count string
	}{
		{"Squat", []string{"count", "170", "70", "170", "70"}, "2"},
		{"Push-up threshold", []string{"count", "--mode", "push-up", "170", "85"}, "1"},
		{"Squat ignores push-up depth", []string{"count", "170", "85"}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs(tt.args)
			if err := root.Execute(); err != nil {
				t.Fatalf("count failed: %v", err)
			}

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			last := lines[len(lines)-1]
			if !strings.Contains(last, tt.count) || !strings.Contains(last, "reps") {
				t.Errorf("Expected %s reps, got %q", tt.count, last)
			}
		})
	}
}

func TestCountCommand_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"count", "abc"},
		{"count", "--mode", "lunge", "170"},
		{"count"},
	} {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)
		if err := root.Execute(); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}
