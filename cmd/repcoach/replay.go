package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/pose"
)

// replayRow is the outcome of one recorded frame.
type replayRow struct {
	Frame int
	State exercise.State
	exercise.Result
}

func newReplayCmd(opts *options) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "replay <landmarks.jsonl>",
		Short: "Replay recorded landmark frames",
		Long: `Replay a JSONL file with one frame per line. Each line is either a
landmark array, an object with a "landmarks" field, or null for a frame
without a detected person. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, profiles, err := opts.load()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			rows, final, err := replay(r, mode, profiles)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !summary {
				renderReplay(out, rows)
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s: %s reps over %d frames",
				final.Mode, countStyle.Render(fmt.Sprint(final.Count)), len(rows))))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&summary, "summary", "s", false, "Print only the final count")
	return cmd
}

// replay runs every frame in r through a running session of mode.
func replay(r io.Reader, mode exercise.Mode, profiles exercise.Profiles) ([]replayRow, exercise.State, error) {
	st := exercise.NewState(mode)
	st.Running = true

	var rows []replayRow
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}

		lm, err := parseFrame(text)
		if err != nil {
			return nil, st, fmt.Errorf("line %d: %w", line, err)
		}

		var res exercise.Result
		st, res = exercise.ProcessFrame(st, lm, profiles)
		rows = append(rows, replayRow{Frame: len(rows) + 1, State: st, Result: res})
	}
	if err := scanner.Err(); err != nil {
		return nil, st, fmt.Errorf("failed to read frames: %w", err)
	}
	return rows, st, nil
}

func parseFrame(data []byte) (*pose.Landmarks, error) {
	if string(data) == "null" {
		return nil, nil
	}
	if data[0] == '{' {
		var wrapped struct {
			Landmarks *pose.Landmarks `json:"landmarks"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Landmarks, nil
	}

	var lm pose.Landmarks
	if err := json.Unmarshal(data, &lm); err != nil {
		return nil, err
	}
	return &lm, nil
}

func renderReplay(out io.Writer, rows []replayRow) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("Frame")+"\t"+titleStyle.Render("Angle")+"\t"+titleStyle.Render("Stage")+"\t"+titleStyle.Render("Reps")+"\t"+titleStyle.Render("Feedback")+"\t")
	fmt.Fprintln(w, strings.Repeat("-", 64))

	for _, row := range rows {
		if row.Skipped {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t\n", row.Frame, dimStyle.Render("no pose"), stageLabel(row.State.Stage), row.State.Count, dimStyle.Render("-"))
			continue
		}
		reps := fmt.Sprint(row.State.Count)
		if row.RepCounted {
			reps = countStyle.Render(reps + " +1")
		}
		fmt.Fprintf(w, "%d\t%.1f\t%s\t%s\t%s\t\n", row.Frame, row.Angle, stageLabel(row.State.Stage), reps, feedbackLabel(row.Feedback))
	}
	w.Flush()
}
