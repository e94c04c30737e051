package cmd

import (
	"fmt"

	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the execution event log.",
}

// reporter is a summary built from every entry of the event log.
type reporter interface {
	Update(le *logger.LogEntry)
}

func newReportCommand(use, short string, newReport func() reporter) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			config, err := loadConfig()
			if err != nil {
				return err
			}

			fd, err := config.ReadEventLog()
			if err != nil {
				return err
			}
			defer fd.Close()

			report := newReport()
			if err := logger.ReadJSONLinesLog(fd, report.Update); err != nil {
				return err
			}

			out, err := yaml.Marshal(report)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(
		newReportCommand("report", "Show a report of events.", func() reporter {
			return &logger.Report{}
		}),
		newReportCommand("failures", "Show the lines that failed, grouped by error.", func() reporter {
			return logger.NewFailureReport()
		}),
		newReportCommand("sessions", "Show what each session ran.", func() reporter {
			return &logger.InteractionReport{}
		}),
	)
}
