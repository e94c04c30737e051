package commands

import (
	"io"
)

const (
	// VT100 cursor home and erase display.
	clearScreen = "\033[H\033[2J"
	// xterm extension that drops the scrollback buffer.
	clearScrollback = "\033[3J"
)

// Clear implements the UNIX clear command. Nothing is written unless stdout
// is a terminal.
func Clear(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "clear [-x]",
		Short: "Clear the terminal screen.",
	}
	keepScrollback := cmd.Flags().Bool('x', "do not clear the scrollback buffer")

	return cmd.RunE(env, func() error {
		if !writesToTerminal(env.Stdout()) {
			return nil
		}
		seq := clearScreen
		if !*keepScrollback {
			seq += clearScrollback
		}
		_, err := io.WriteString(env.Stdout(), seq)
		return err
	})
}

var _ BuiltinFunc = Clear

func init() {
	mustAddBuiltin("clear", Clear)
}
