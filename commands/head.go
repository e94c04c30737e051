package commands

import (
	"bufio"
	"fmt"
	"io"
)

// Head implements the POSIX head command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/head.html
func Head(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "head [-n NUMBER] [FILE]...",
		Short: "Copy the first lines of each input file to standard output.",
	}

	lines := cmd.Flags().IntLong("lines", 'n', 10, "number of lines to copy")

	return cmd.Run(env, func() int {
		if *lines < 0 {
			cmd.LogProgramError(env, fmt.Errorf("invalid number of lines: %d", *lines))
			return 1
		}

		files := cmd.Flags().Args()
		showHeaders := len(files) > 1
		first := true
		return cmd.RunEachFileOrStdin(env, files, func(name string, fd io.Reader) error {
			w := &writeErr{w: env.Stdout()}
			if showHeaders {
				if !first {
					w.Println()
				}
				w.Printf("==> %s <==\n", name)
			}
			first = false

			reader := bufio.NewReader(fd)
			for i := 0; i < *lines && w.err == nil; i++ {
				line, err := reader.ReadString('\n')
				if line != "" {
					w.Printf("%s", line)
				}
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
			}
			return w.err
		})
	})
}

var _ BuiltinFunc = Head

func init() {
	mustAddBuiltin("head", Head)
}
