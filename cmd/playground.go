package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/cobra"
)

var (
	playgroundRoot  string
	playgroundImage string
)

// playgroundFilesystem reads through to root, or starts from image alone.
func playgroundFilesystem() (config.Filesystem, error) {
	if playgroundImage != "" && playgroundRoot != "" {
		return config.Filesystem{}, fmt.Errorf("--root and --image can't be used together")
	}
	if playgroundImage != "" {
		image, err := filepath.Abs(playgroundImage)
		if err != nil {
			return config.Filesystem{}, err
		}
		return config.Filesystem{Kind: vos.FsMemory, Image: image}, nil
	}

	root := playgroundRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Filesystem{}, err
		}
		root = wd
	}
	return config.Filesystem{Kind: vos.FsOverlay, Root: root}, nil
}

// playgroundCmd runs the shell over a throwaway filesystem
var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Run the shell without a configuration, writes are discarded on exit.",
	Long: `Runs an interactive shell with a temporary configuration. By default the
current directory is readable and every write stays in memory. With --image
the session starts from a filesystem image made by "pipesh image".`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		filesystem, err := playgroundFilesystem()
		if err != nil {
			return err
		}

		dir, err := os.MkdirTemp("", "playground")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		logger := log.New(cmd.ErrOrStderr(), "[playground] ", 0)
		cfg, err := config.Initialize(dir, logger)
		if err != nil {
			return err
		}
		cfg.Filesystem = filesystem
		cfg.Prompt = "playground:$PWD$ "
		cfg.Transcripts = ""
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger.Printf("Logging to: file://%s\n", dir)
		logger.Printf("See logs with: tail -f %s\n", filepath.Join(dir, cfg.EventLog))
		logger.Println(strings.Repeat("=", 80))

		runtime, closeRuntime, err := openRuntime(cfg)
		if err != nil {
			return err
		}
		defer closeRuntime()

		exitCode, err := runShell(cmd, runtime)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exit code: %d\n", exitCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playgroundCmd)

	playgroundCmd.Flags().StringVar(&playgroundRoot, "root", "", "Host directory to read through to, the working directory by default.")
	playgroundCmd.Flags().StringVar(&playgroundImage, "image", "", "Start from a .tar.gz filesystem image instead of the host.")
}
