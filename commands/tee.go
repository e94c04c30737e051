package commands

import (
	"io"
	"os"

	"github.com/spf13/afero"
)

// Tee implements the POSIX tee command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/tee.html
func Tee(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "tee [-a] [FILE]...",
		Short: "Copy standard input to standard output and each FILE.",
	}

	appendMode := cmd.Flags().BoolLong("append", 'a', "append to the given files, don't overwrite")

	return cmd.Run(env, func() int {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if *appendMode {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}

		exitCode := 0
		writers := []io.Writer{env.Stdout()}
		for _, name := range cmd.Flags().Args() {
			fd, err := env.Fs().OpenFile(env.Resolve(name), flags, 0o644)
			if err != nil {
				cmd.LogProgramError(env, err)
				exitCode = 1
				continue
			}
			defer func(fd afero.File) {
				if err := fd.Close(); err != nil {
					cmd.LogProgramError(env, err)
				}
			}(fd)
			writers = append(writers, fd)
		}

		if _, err := io.Copy(io.MultiWriter(writers...), env.Stdin()); err != nil {
			return streamFailure(env, err)
		}
		return exitCode
	})
}

var _ BuiltinFunc = Tee

func init() {
	mustAddBuiltin("tee", Tee)
}
