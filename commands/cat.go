package commands

import (
	"bufio"
	"fmt"
	"io"
)

// Cat implements the UNIX cat command.
func Cat(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "cat [-n] [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}

	number := cmd.Flags().Bool('n', "number all output lines")

	return cmd.Run(env, func() int {
		lineNo := 1
		return cmd.RunEachFileOrStdin(env, cmd.Flags().Args(), func(name string, fd io.Reader) error {
			if !*number {
				_, err := io.Copy(env.Stdout(), fd)
				return err
			}

			scanner := bufio.NewScanner(fd)
			for scanner.Scan() {
				if _, err := fmt.Fprintf(env.Stdout(), "%6d\t%s\n", lineNo, scanner.Text()); err != nil {
					return err
				}
				lineNo++
			}
			return scanner.Err()
		})
	})
}

var _ BuiltinFunc = Cat

func init() {
	mustAddBuiltin("cat", Cat)
}
