package cmd

import (
	"io"
	"os"

	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/cobra"
)

var runCommand string

// runCmd executes a script non-interactively
var runCmd = &cobra.Command{
	Use:   "run [FILE]",
	Short: "Run a script from a file, the command line or stdin.",
	Long: `Run a script in a new session and exit with the code of its last
pipeline.

	pipesh run build.psh
	pipesh run -c 'ls | grep .go'
	echo 'echo hi' | pipesh run
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		stdin := cmd.InOrStdin()
		var script string
		switch {
		case cmd.Flags().Changed("command"):
			script = runCommand
		case len(args) == 1:
			contents, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			script = string(contents)
		default:
			contents, err := io.ReadAll(stdin)
			if err != nil {
				return err
			}
			script = string(contents)
			stdin = nil
		}

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		runtime, closeRuntime, err := openRuntime(configuration)
		if err != nil {
			return err
		}

		code := runtime.Run(vos.NewVIOAdapter(stdin, cmd.OutOrStdout(), cmd.ErrOrStderr()), script)
		closeRuntime()
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runCommand, "command", "c", "", "script to run instead of a file")
}
