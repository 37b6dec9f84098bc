package exercise

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kdimtricp/repcoach/internal/pose"
)

// Joints names the three landmarks whose angle drives counting. Vertex is
// the joint the angle is measured at.
type Joints struct {
	First  pose.Index `yaml:"first"`
	Vertex pose.Index `yaml:"vertex"`
	Last   pose.Index `yaml:"last"`
}

// Posture names the landmarks of the body-alignment check. Reference is
// measured against the Start-End line.
type Posture struct {
	Start     pose.Index `yaml:"start"`
	Reference pose.Index `yaml:"reference"`
	End       pose.Index `yaml:"end"`
}

type Messages struct {
	Posture string `yaml:"posture"`
	Shallow string `yaml:"shallow"`
	Good    string `yaml:"good"`
}

// Profile holds the thresholds and cues for one exercise. SagThreshold <= 0
// disables the posture check.
type Profile struct {
	UpAngle      float64  `yaml:"up_angle"`
	DownAngle    float64  `yaml:"down_angle"`
	ShallowAngle float64  `yaml:"shallow_angle"`
	SagThreshold float64  `yaml:"sag_threshold"`
	Joints       Joints   `yaml:"joints"`
	Posture      Posture  `yaml:"posture"`
	Messages     Messages `yaml:"messages"`
}

func (p Profile) ChecksPosture() bool {
	return p.SagThreshold > 0
}

func (p Profile) Validate() error {
	if p.UpAngle <= 0 || p.UpAngle > 180 {
		return fmt.Errorf("up_angle must be in (0,180], got %v", p.UpAngle)
	}
	if p.DownAngle <= 0 || p.DownAngle >= p.UpAngle {
		return fmt.Errorf("down_angle must be in (0,up_angle), got %v", p.DownAngle)
	}
	if p.ShallowAngle < p.DownAngle {
		return fmt.Errorf("shallow_angle must be >= down_angle, got %v", p.ShallowAngle)
	}
	if p.SagThreshold < 0 {
		return fmt.Errorf("sag_threshold must be >= 0, got %v", p.SagThreshold)
	}
	if p.ChecksPosture() {
		ps := p.Posture
		if ps.Start == ps.Reference || ps.Start == ps.End || ps.Reference == ps.End {
			return fmt.Errorf("sag_threshold needs three distinct posture landmarks, got %s/%s/%s",
				ps.Start, ps.Reference, ps.End)
		}
	}
	return nil
}

// Profiles maps each mode to its profile.
type Profiles map[Mode]Profile

func DefaultProfiles() Profiles {
	return Profiles{
		Squat: {
			UpAngle:      160,
			DownAngle:    80,
			ShallowAngle: 100,
			Joints:       Joints{First: pose.RightHip, Vertex: pose.RightKnee, Last: pose.RightAnkle},
			Messages: Messages{
				Shallow: "Go lower! Break parallel.",
				Good:    "Good depth!",
			},
		},
		Pushup: {
			UpAngle:      160,
			DownAngle:    90,
			ShallowAngle: 100,
			SagThreshold: 0.05,
			Joints:       Joints{First: pose.RightShoulder, Vertex: pose.RightElbow, Last: pose.RightWrist},
			Posture:      Posture{Start: pose.RightShoulder, Reference: pose.RightHip, End: pose.RightAnkle},
			Messages: Messages{
				Posture: "Keep back straight!",
				Shallow: "Go lower! Aim for 90 deg.",
				Good:    "Good depth!",
			},
		},
	}
}

// Get returns the profile for mode, falling back to the built-in default.
func (p Profiles) Get(mode Mode) Profile {
	if prof, ok := p[mode]; ok {
		return prof
	}
	return DefaultProfiles()[mode]
}

// LoadProfiles reads overrides from a YAML file keyed by mode ("squat",
// "push-up"). Fields left out keep their default values.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exercise profiles: %w", err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse exercise profiles: %w", err)
	}

	for key, node := range raw {
		mode, err := ParseMode(key)
		if err != nil {
			return nil, err
		}

		prof := profiles[mode]
		if err := node.Decode(&prof); err != nil {
			return nil, fmt.Errorf("profile %s: %w", key, err)
		}
		if err := prof.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", key, err)
		}
		profiles[mode] = prof
	}

	return profiles, nil
}
