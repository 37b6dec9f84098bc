package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kdimtricp/repcoach/internal/annotate"
	"github.com/kdimtricp/repcoach/internal/database"
	"github.com/kdimtricp/repcoach/internal/pipeline"
	"github.com/kdimtricp/repcoach/internal/pose"
	"github.com/kdimtricp/repcoach/internal/storage"
	"github.com/kdimtricp/repcoach/internal/workout"
)

type testServer struct {
	Server    *httptest.Server
	App       *App
	Estimator *pose.Static
	Repo      *database.WorkoutRepo
	Dir       string
}

// setupTestServer wires the full stack over a temporary SQLite database.
// A nil estimator leaves frame estimation unconfigured.
func setupTestServer(t *testing.T, est *pose.Static) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(dir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	snapshots, err := storage.NewLocalStorage(filepath.Join(dir, "snapshots"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	annotator, err := annotate.New()
	if err != nil {
		t.Fatalf("Failed to create annotator: %v", err)
	}

	var estimator pose.Estimator
	if est != nil {
		estimator = est
	}

	repo := database.NewWorkoutRepo(db)
	sessions := workout.NewService(pipeline.New(estimator, annotator, nil), repo, nil, workout.Config{})

	app := &App{
		Sessions:     sessions,
		History:      repo,
		Storage:      snapshots,
		MaxFrameSize: 1 << 20,
		TemplateDir:  filepath.Join("..", "..", "web", "templates"),
	}

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(server.Close)

	return &testServer{
		Server:    server,
		App:       app,
		Estimator: est,
		Repo:      repo,
		Dir:       dir,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, r)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d: %s", status, resp.StatusCode, body)
	}
}

// squatPose builds landmarks whose hip-knee-ankle angle is deg.
func squatPose(deg float64) *pose.Landmarks {
	lm := make(pose.Landmarks, pose.NumLandmarks)
	for i := range lm {
		lm[i].Visibility = 1
	}
	rad := deg * math.Pi / 180
	lm[pose.RightKnee] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	lm[pose.RightAnkle] = pose.Landmark{X: 0.5, Y: 0.8, Visibility: 1}
	lm[pose.RightHip] = pose.Landmark{X: 0.5 + 0.3*math.Sin(rad), Y: 0.5 + 0.3*math.Cos(rad), Visibility: 1}
	return &lm
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 320, 240)), nil); err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}
