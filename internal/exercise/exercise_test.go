package exercise

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kdimtricp/repcoach/internal/pose"
)

// squatPose builds landmarks whose hip-knee-ankle angle is deg.
func squatPose(deg float64) *pose.Landmarks {
	lm := make(pose.Landmarks, pose.NumLandmarks)
	rad := deg * math.Pi / 180
	knee := pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	lm[pose.RightKnee] = knee
	lm[pose.RightAnkle] = pose.Landmark{X: 0.5, Y: 0.8, Visibility: 1}
	lm[pose.RightHip] = pose.Landmark{X: knee.X + 0.3*math.Sin(rad), Y: knee.Y + 0.3*math.Cos(rad), Visibility: 1}
	return &lm
}

// pushupPose builds landmarks whose shoulder-elbow-wrist angle is deg and
// whose hip sits sag below the shoulder-ankle line.
func pushupPose(deg, sag float64) *pose.Landmarks {
	lm := make(pose.Landmarks, pose.NumLandmarks)
	rad := deg * math.Pi / 180
	elbow := pose.Landmark{X: 0.3, Y: 0.6, Visibility: 1}
	shoulder := pose.Landmark{X: elbow.X + 0.2*math.Sin(rad), Y: elbow.Y + 0.2*math.Cos(rad), Visibility: 1}
	lm[pose.RightElbow] = elbow
	lm[pose.RightWrist] = pose.Landmark{X: 0.3, Y: 0.8, Visibility: 1}
	lm[pose.RightShoulder] = shoulder
	lm[pose.RightAnkle] = pose.Landmark{X: shoulder.X + 0.6, Y: shoulder.Y, Visibility: 1}
	lm[pose.RightHip] = pose.Landmark{X: shoulder.X + 0.3, Y: shoulder.Y + sag, Visibility: 1}
	return &lm
}

func TestCountAngles(t *testing.T) {
	profiles := DefaultProfiles()

	t.Run("Single rep", func(t *testing.T) {
		stages, count := CountAngles(Squat, []float64{170, 170, 70, 70, 170}, profiles)

		expected := []Stage{Up, Up, Down, Down, Up}
		for i := range expected {
			if stages[i] != expected[i] {
				t.Errorf("Frame %d: expected %s, got %s", i, expected[i], stages[i])
			}
		}
		if count != 1 {
			t.Errorf("Expected 1 rep, got %d", count)
		}
	})

	t.Run("No double counting while held down", func(t *testing.T) {
		_, count := CountAngles(Squat, []float64{170, 75, 75, 75, 170, 75}, profiles)
		if count != 2 {
			t.Errorf("Expected 2 reps, got %d", count)
		}
	})

	t.Run("Jitter near the down threshold", func(t *testing.T) {
		_, count := CountAngles(Squat, []float64{170, 79, 81, 79, 85, 78, 120, 79}, profiles)
		if count != 1 {
			t.Errorf("Expected 1 rep, got %d", count)
		}
	})

	t.Run("Stuck down without full extension", func(t *testing.T) {
		stages, count := CountAngles(Squat, []float64{170, 70, 150, 70, 155}, profiles)
		if count != 1 || stages[len(stages)-1] != Down {
			t.Errorf("Expected 1 rep and DOWN, got %d and %s", count, stages[len(stages)-1])
		}
	})

	t.Run("Push-up threshold", func(t *testing.T) {
		_, squatCount := CountAngles(Squat, []float64{170, 85}, profiles)
		_, pushupCount := CountAngles(Pushup, []float64{170, 85}, profiles)
		if squatCount != 0 || pushupCount != 1 {
			t.Errorf("Expected squat 0 / push-up 1, got %d / %d", squatCount, pushupCount)
		}
	})
}

func TestSelectFeedback(t *testing.T) {
	squat := DefaultProfiles()[Squat]
	pushup := DefaultProfiles()[Pushup]

	tests := []struct {
		name     string
		stage    Stage
		angle    float64
		sag      float64
		profile  Profile
		expected string
	}{
		{"Up is silent", Up, 170, 0, squat, ""},
		{"Shallow squat", Down, 110, 0, squat, "Go lower! Break parallel."},
		{"Deep squat", Down, 70, 0, squat, "Good depth!"},
		{"Squat ignores sag", Down, 70, 0.5, squat, "Good depth!"},
		{"Posture beats depth", Down, 110, 0.08, pushup, "Keep back straight!"},
		{"Posture while up", Up, 170, 0.08, pushup, "Keep back straight!"},
		{"Shallow push-up", Down, 110, 0.01, pushup, "Go lower! Aim for 90 deg."},
		{"Sag at threshold is fine", Down, 80, 0.05, pushup, "Good depth!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectFeedback(tt.stage, tt.angle, tt.sag, tt.profile)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestProcessFrame(t *testing.T) {
	profiles := DefaultProfiles()

	t.Run("Paused state is untouched", func(t *testing.T) {
		s := NewState(Squat)
		next, res := ProcessFrame(s, squatPose(60), profiles)
		if next != s || !res.Skipped {
			t.Errorf("Expected skip, got %+v %+v", next, res)
		}
	})

	t.Run("No pose is skipped", func(t *testing.T) {
		s := State{Mode: Squat, Running: true, Count: 3, Stage: Down}
		next, res := ProcessFrame(s, nil, profiles)
		if next != s || !res.Skipped {
			t.Errorf("Expected skip, got %+v %+v", next, res)
		}

		short := pose.Landmarks{{X: 1}}
		next, res = ProcessFrame(s, &short, profiles)
		if next != s || !res.Skipped {
			t.Errorf("Expected skip for partial pose, got %+v %+v", next, res)
		}
	})

	t.Run("Squat rep", func(t *testing.T) {
		s := NewState(Squat)
		s.Running = true

		s, res := ProcessFrame(s, squatPose(170), profiles)
		if s.Stage != Up || res.Feedback != "" {
			t.Fatalf("Expected UP and no feedback, got %+v %+v", s, res)
		}
		if math.Abs(res.Angle-170) > 1e-6 {
			t.Errorf("Expected angle 170, got %f", res.Angle)
		}

		s, res = ProcessFrame(s, squatPose(70), profiles)
		if s.Stage != Down || s.Count != 1 || !res.RepCounted {
			t.Fatalf("Expected first rep, got %+v %+v", s, res)
		}
		if res.Feedback != "Good depth!" {
			t.Errorf("Expected good depth, got %q", res.Feedback)
		}

		s, res = ProcessFrame(s, squatPose(120), profiles)
		if s.Count != 1 || res.RepCounted || res.Feedback != "Go lower! Break parallel." {
			t.Errorf("Unexpected rising frame: %+v %+v", s, res)
		}
	})

	t.Run("Hip on line suppresses posture cue", func(t *testing.T) {
		s := State{Mode: Pushup, Running: true, Stage: Down, Count: 1}
		s, res := ProcessFrame(s, pushupPose(120, 0), profiles)
		if res.Sag > 1e-9 {
			t.Errorf("Expected zero sag, got %f", res.Sag)
		}
		if res.Feedback != "Go lower! Aim for 90 deg." {
			t.Errorf("Expected depth cue, got %q", res.Feedback)
		}
		if s.Stage != Down {
			t.Errorf("Expected to stay DOWN, got %s", s.Stage)
		}
	})

	t.Run("Sagging hips", func(t *testing.T) {
		s := State{Mode: Pushup, Running: true, Stage: Down, Count: 1}
		_, res := ProcessFrame(s, pushupPose(120, 0.1), profiles)
		if math.Abs(res.Sag-0.1) > 1e-9 {
			t.Errorf("Expected sag 0.1, got %f", res.Sag)
		}
		if res.Feedback != "Keep back straight!" {
			t.Errorf("Expected posture cue, got %q", res.Feedback)
		}
	})
}

func TestResetAndSwitchMode(t *testing.T) {
	s := State{Mode: Pushup, Running: true, Count: 12, Stage: Down}

	r := Reset(s)
	if r.Count != 0 || r.Stage != Up || r.Mode != Pushup || !r.Running {
		t.Errorf("Unexpected reset state: %+v", r)
	}

	same := SwitchMode(s, Pushup)
	if same != s {
		t.Errorf("Switching to the same mode must be a no-op, got %+v", same)
	}

	switched := SwitchMode(s, Squat)
	if switched.Mode != Squat || switched.Count != 0 || switched.Stage != Up || !switched.Running {
		t.Errorf("Unexpected switched state: %+v", switched)
	}
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"squat", "Squat", " SQUATS "} {
		if m, err := ParseMode(in); err != nil || m != Squat {
			t.Errorf("ParseMode(%q) = %v, %v", in, m, err)
		}
	}
	for _, in := range []string{"push-up", "Push-up", "pushup", "push_up"} {
		if m, err := ParseMode(in); err != nil || m != Pushup {
			t.Errorf("ParseMode(%q) = %v, %v", in, m, err)
		}
	}
	if _, err := ParseMode("burpee"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(State{Mode: Pushup, Running: true, Count: 4, Stage: Down})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	expected := `{"mode":"push-up","running":true,"count":4,"stage":"DOWN"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}
}

func TestLoadProfiles(t *testing.T) {
	t.Run("Defaults without file", func(t *testing.T) {
		p, err := LoadProfiles("")
		if err != nil {
			t.Fatalf("LoadProfiles failed: %v", err)
		}
		if p.Get(Squat).DownAngle != 80 || p.Get(Pushup).DownAngle != 90 {
			t.Errorf("Unexpected defaults: %+v", p)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profiles.yaml")
		content := `
squat:
  down_angle: 85
  messages:
    good: "Nice!"
push-up:
  sag_threshold: 0.08
  joints:
    first: left_shoulder
    vertex: left_elbow
    last: left_wrist
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write profiles: %v", err)
		}

		p, err := LoadProfiles(path)
		if err != nil {
			t.Fatalf("LoadProfiles failed: %v", err)
		}

		squat := p.Get(Squat)
		if squat.DownAngle != 85 || squat.UpAngle != 160 {
			t.Errorf("Unexpected squat profile: %+v", squat)
		}
		if squat.Messages.Good != "Nice!" || squat.Messages.Shallow != "Go lower! Break parallel." {
			t.Errorf("Unexpected squat messages: %+v", squat.Messages)
		}

		pushup := p.Get(Pushup)
		if pushup.SagThreshold != 0.08 || pushup.Joints.Vertex != pose.LeftElbow {
			t.Errorf("Unexpected push-up profile: %+v", pushup)
		}
	})

	t.Run("Invalid thresholds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("squat:\n  down_angle: 170\n"), 0644); err != nil {
			t.Fatalf("Failed to write profiles: %v", err)
		}
		if _, err := LoadProfiles(path); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("Posture check without landmarks", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posture.yaml")
		if err := os.WriteFile(path, []byte("squat:\n  sag_threshold: 0.05\n"), 0644); err != nil {
			t.Fatalf("Failed to write profiles: %v", err)
		}
		if _, err := LoadProfiles(path); err == nil {
			t.Error("Expected error for posture check without posture landmarks")
		}
	})

	t.Run("Squat posture check", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posture.yaml")
		content := `
squat:
  sag_threshold: 0.1
  posture:
    start: right_shoulder
    reference: right_hip
    end: right_ankle
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write profiles: %v", err)
		}
		p, err := LoadProfiles(path)
		if err != nil {
			t.Fatalf("LoadProfiles failed: %v", err)
		}
		if !p.Get(Squat).ChecksPosture() {
			t.Error("Expected squat posture check enabled")
		}
	})

	t.Run("Negative sag threshold", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "negative.yaml")
		if err := os.WriteFile(path, []byte("push-up:\n  sag_threshold: -0.1\n"), 0644); err != nil {
			t.Fatalf("Failed to write profiles: %v", err)
		}
		if _, err := LoadProfiles(path); err == nil {
			t.Error("Expected error for negative sag threshold")
		}
	})

	t.Run("Unknown exercise", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unknown.yaml")
		if err := os.WriteFile(path, []byte("lunge:\n  down_angle: 70\n"), 0644); err != nil {
			t.Fatalf("Failed to write profiles: %v", err)
		}
		if _, err := LoadProfiles(path); err == nil {
			t.Error("Expected error for unknown exercise")
		}
	})
}
