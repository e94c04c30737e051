package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"
	"github.com/josephlewis42/pipesh/core/shell"
)

// Awk runs an AWK program over the input files or stdin. The interpreter
// can't run commands or touch files on its own, input comes through the
// session's filesystem.
func Awk(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "awk [-F SEP] [-v VAR=VALUE]... PROGRAM [FILE]...",
		Short: "Scan and process patterns in text.",
	}

	fieldSep := cmd.Flags().String('F', "", "field separator")
	assignments := cmd.Flags().List('v', "assign VAR=VALUE before the program runs")

	return cmd.Run(env, func() int {
		args := cmd.Flags().Args()
		if len(args) == 0 {
			cmd.LogProgramError(env, errors.New("missing program"))
			return 2
		}

		prog, err := parser.ParseProgram([]byte(args[0]), nil)
		if err != nil {
			cmd.LogProgramError(env, err)
			return 2
		}

		var vars []string
		if *fieldSep != "" {
			fs, _ := unescape(*fieldSep)
			vars = append(vars, "FS", fs)
		}
		for _, assignment := range *assignments {
			name, value, ok := strings.Cut(assignment, "=")
			if !ok {
				cmd.LogProgramError(env, fmt.Errorf("invalid assignment %q", assignment))
				return 2
			}
			value, _ = unescape(value)
			vars = append(vars, name, value)
		}

		input := env.Stdin()
		if files := args[1:]; len(files) > 0 {
			var readers []io.Reader
			for _, name := range files {
				if name == "-" {
					readers = append(readers, env.Stdin())
					continue
				}
				fd, err := env.Open(name)
				if err != nil {
					cmd.LogProgramError(env, err)
					return 2
				}
				defer fd.Close()
				readers = append(readers, fd)
			}
			input = io.MultiReader(readers...)
		}

		interpreter, err := interp.New(prog)
		if err != nil {
			cmd.LogProgramError(env, err)
			return 2
		}
		status, err := interpreter.ExecuteContext(env.Context(), &interp.Config{
			Stdin:        input,
			Output:       env.Stdout(),
			Error:        env.Stderr(),
			Args:         []string{},
			Vars:         vars,
			Environ:      env.Session().Env().Environ(),
			NoExec:       true,
			NoFileReads:  true,
			NoFileWrites: true,
		})
		switch {
		case err == nil:
			return status
		case shell.IsInterruption(err):
			return streamFailure(env, err)
		default:
			cmd.LogProgramError(env, err)
			return 2
		}
	})
}

var _ BuiltinFunc = Awk

func init() {
	mustAddBuiltin("awk", Awk)
}
