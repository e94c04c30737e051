package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/josephlewis42/pipesh/core/ttylog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	fixLineEndings bool
	playback       ttylog.Playback
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Explore recorded shell transcripts.",
}

// playCommand replays a transcript at its recorded speed
var playCommand = &cobra.Command{
	Use:   "play FILE.cast",
	Short: "Replay a recorded interactive session in the terminal.",
	Long:  `Plays a recorded interactive session back to the current terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(transcriptPath(args[0]))
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		sink = playback.Sink(sink)
		return ttylog.Replay(ttylog.NewAsciicastLogSource(fd), applyMiddleware(sink))
	},
}

// catCommand dumps the output of a transcript without pauses
var catCommand = &cobra.Command{
	Use:   "cat FILE.cast",
	Short: "Print full output of recorded log to a terminal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(transcriptPath(args[0]))
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		return ttylog.Replay(ttylog.NewAsciicastLogSource(fd), applyMiddleware(sink))
	},
}

var listCommand = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the recorded transcripts.",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		config, err := loadConfig()
		if err != nil {
			return err
		}
		if config.Transcripts == "" {
			return fmt.Errorf("transcripts are disabled in the configuration")
		}

		dir := config.TranscriptPath("")
		entries, err := afero.ReadDir(afero.NewOsFs(), dir)
		switch {
		case os.IsNotExist(err):
			return nil
		case err != nil:
			return err
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name() < entries[j].Name()
		})
		for _, entry := range entries {
			if entry.IsDir() || strings.TrimPrefix(filepath.Ext(entry.Name()), ".") != ttylog.AsciicastFileExt {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", filepath.Join(dir, entry.Name()), entry.Size())
		}
		return nil
	},
}

// transcriptPath resolves bare transcript names against the configured
// transcript directory.
func transcriptPath(name string) string {
	if strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	config, err := loadConfig()
	if err != nil || config.Transcripts == "" {
		return name
	}
	return config.TranscriptPath(name)
}

func applyMiddleware(sink ttylog.LogSink) ttylog.LogSink {
	if fixLineEndings {
		sink = ttylog.NewCRLFAdapter(sink)
	}

	return sink
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(playCommand)
	logsCmd.AddCommand(catCommand)
	logsCmd.AddCommand(listCommand)

	for _, cmd := range []*cobra.Command{playCommand, catCommand} {
		cmd.Flags().BoolVar(&fixLineEndings, "crlf", false, "Translate bare newlines to CRLF on output.")
	}

	// cat doesn't allow idle time
	playCommand.Flags().DurationVarP(&playback.MaxIdle, "idle-time-limit", "i", 3*time.Second, "Maximum time output can be idle. (e.g. 3s, 2m, 100ms)")
	playCommand.Flags().Float64VarP(&playback.Speed, "speed", "s", 1, "Playback speed multiplier.")
}
