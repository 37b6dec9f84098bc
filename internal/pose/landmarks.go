package pose

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kdimtricp/repcoach/internal/geometry"
)

// Index identifies a body joint in the 33-point BlazePose layout.
type Index int

const (
	Nose Index = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

// NumLandmarks is the number of joints produced per detected person.
const NumLandmarks = 33

var indexNames = map[string]Index{
	"right_shoulder": RightShoulder,
	"right_elbow":    RightElbow,
	"right_wrist":    RightWrist,
	"right_hip":      RightHip,
	"right_knee":     RightKnee,
	"right_ankle":    RightAnkle,
	"left_shoulder":  LeftShoulder,
	"left_elbow":     LeftElbow,
	"left_wrist":     LeftWrist,
	"left_hip":       LeftHip,
	"left_knee":      LeftKnee,
	"left_ankle":     LeftAnkle,
}

// ParseIndex resolves a joint name such as "right_knee".
func ParseIndex(name string) (Index, error) {
	idx, ok := indexNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown landmark %q", name)
	}
	return idx, nil
}

func (i Index) String() string {
	for name, idx := range indexNames {
		if idx == i {
			return name
		}
	}
	return fmt.Sprintf("landmark_%d", int(i))
}

// MarshalYAML/UnmarshalYAML let exercise profiles name joints.
func (i Index) MarshalYAML() (interface{}, error) {
	return i.String(), nil
}

func (i *Index) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	idx, err := ParseIndex(name)
	if err != nil {
		return err
	}
	*i = idx
	return nil
}

// Landmark is a single normalized joint position with its visibility score.
type Landmark struct {
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z" msgpack:"z"`
	Visibility float64 `json:"visibility" msgpack:"visibility"`
}

// Landmarks is the full joint set of one detected person, indexed by Index.
type Landmarks []Landmark

// Valid reports whether the set carries every joint.
func (l Landmarks) Valid() bool {
	return len(l) >= NumLandmarks
}

// Point returns the 2D position of joint i.
func (l Landmarks) Point(i Index) geometry.Point {
	lm := l[i]
	return geometry.Point{X: lm.X, Y: lm.Y}
}

// UnmarshalJSON accepts either objects ({"x":..}) or compact [x,y,z,v] rows.
func (l *Landmarks) UnmarshalJSON(data []byte) error {
	var objects []Landmark
	if err := json.Unmarshal(data, &objects); err == nil {
		*l = objects
		return nil
	}

	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("landmarks must be objects or [x,y,z,visibility] rows: %w", err)
	}
	*l = fromRows(rows)
	return nil
}

func fromRows(rows [][]float64) Landmarks {
	out := make(Landmarks, len(rows))
	for i, row := range rows {
		var lm Landmark
		if len(row) > 0 {
			lm.X = row[0]
		}
		if len(row) > 1 {
			lm.Y = row[1]
		}
		if len(row) > 2 {
			lm.Z = row[2]
		}
		if len(row) > 3 {
			lm.Visibility = row[3]
		} else {
			lm.Visibility = 1
		}
		out[i] = lm
	}
	return out
}

// Connections are the skeleton edges drawn over the frame.
var Connections = [][2]Index{
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow},
	{LeftElbow, LeftWrist},
	{RightShoulder, RightElbow},
	{RightElbow, RightWrist},
	{LeftShoulder, LeftHip},
	{RightShoulder, RightHip},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle},
	{RightHip, RightKnee},
	{RightKnee, RightAnkle},
	{LeftAnkle, LeftHeel},
	{LeftHeel, LeftFootIndex},
	{RightAnkle, RightHeel},
	{RightHeel, RightFootIndex},
	{LeftWrist, LeftIndex},
	{RightWrist, RightIndex},
	{Nose, LeftEye},
	{Nose, RightEye},
	{LeftEye, LeftEar},
	{RightEye, RightEar},
}

// Frame is a single camera frame handed to an Estimator.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	// Data holds the JPEG-encoded image.
	Data []byte
}
