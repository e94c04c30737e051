package cmd

import (
	"os"

	"github.com/josephlewis42/pipesh/core"
	"github.com/spf13/cobra"
)

// shellCmd starts an interactive session
var shellCmd = &cobra.Command{
	Use:     "shell",
	Aliases: []string{"repl"},
	Short:   "Start an interactive session.",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		runtime, closeRuntime, err := openRuntime(configuration)
		if err != nil {
			return err
		}

		code, err := runShell(cmd, runtime)
		closeRuntime()
		if err != nil {
			return err
		}
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func runShell(cmd *cobra.Command, runtime *core.Runtime) (int, error) {
	sh, err := core.NewShell(runtime, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return 0, err
	}
	defer sh.Close()

	return sh.Run(), nil
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
