package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/repcoach/internal/exercise"
)

var version = "dev"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

type options struct {
	mode     string
	profiles string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "repcoach",
		Short: "Count reps and check form offline",
		Long: `Run recorded pose landmarks or synthetic joint angles through the
rep counter and feedback rules used by the RepCoach server.

Examples:
  repcoach replay session.jsonl --mode push-up
  repcoach count --mode squat 170 70 170 70`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.mode, "mode", "m", "squat", "Exercise: squat or push-up")
	root.PersistentFlags().StringVar(&opts.profiles, "profiles", "", "Exercise profile YAML overriding the built-in thresholds")

	root.AddCommand(newReplayCmd(opts), newCountCmd(opts))
	return root
}

func (o *options) load() (exercise.Mode, exercise.Profiles, error) {
	mode, err := exercise.ParseMode(o.mode)
	if err != nil {
		return 0, nil, err
	}
	profiles, err := exercise.LoadProfiles(o.profiles)
	if err != nil {
		return 0, nil, err
	}
	return mode, profiles, nil
}

func stageLabel(s exercise.Stage) string {
	if s == exercise.Down {
		return downStyle.Render(s.String())
	}
	return s.String()
}

func feedbackLabel(msg string) string {
	switch {
	case msg == "":
		return dimStyle.Render("-")
	case strings.Contains(msg, "!"):
		return warnStyle.Render(msg)
	default:
		return okStyle.Render(msg)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
