package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/repcoach/internal/exercise"
)

func newCountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count <angle>...",
		Short: "Count reps in a sequence of joint angles",
		Long: `Feed joint angles in degrees, one per frame, through the rep counter
and print the stage after each frame.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, profiles, err := opts.load()
			if err != nil {
				return err
			}

			angles := make([]float64, len(args))
			for i, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("invalid angle %q: %w", a, err)
				}
				angles[i] = v
			}

			stages, count := exercise.CountAngles(mode, angles, profiles)

			labels := make([]string, len(stages))
			for i, s := range stages {
				labels[i] = stageLabel(s)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(labels, " "))
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s: %s reps", mode, countStyle.Render(strconv.Itoa(count)))))
			return nil
		},
	}
}
