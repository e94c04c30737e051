package cmd

import (
	"fmt"
	"strings"

	"github.com/josephlewis42/pipesh/commands"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the commands registered in every session
var builtinsCmd = &cobra.Command{
	Use:   "builtins [PREFIX]",
	Short: "Show the builtin commands of the shell, optionally only those starting with PREFIX.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = strings.TrimPrefix(args[0], commands.Scope+":")
		}

		for _, name := range commands.ListBuiltinCommands() {
			if strings.HasPrefix(name, prefix) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", commands.Scope, name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
