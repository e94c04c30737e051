package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/pipesh/core/shell"
)

// Xargs builds argument lists from standard input and calls a command with
// them. Input lines are split into words with shell quoting rules.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/xargs.html
func Xargs(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "xargs [-t] [-n NUMBER] [COMMAND [ARG]...]",
		Short: "Construct argument lists and call COMMAND, echo by default.",
	}

	maxArgs := cmd.Flags().IntLong("max-args", 'n', 0, "use at most NUMBER arguments per call")
	trace := cmd.Flags().BoolLong("verbose", 't', "write each call to stderr before running it")

	return cmd.Run(env, func() int {
		if *maxArgs < 0 {
			cmd.LogProgramError(env, fmt.Errorf("invalid number of arguments: %d", *maxArgs))
			return 1
		}

		base := cmd.Flags().Args()
		name := "echo"
		var fixed []interface{}
		if len(base) > 0 {
			name = base[0]
			values := env.Values()[len(env.Values())-len(base):]
			fixed = append(fixed, values[1:]...)
		}

		fn := env.Session().Command(name)
		if fn == nil {
			cmd.LogProgramError(env, &shell.CommandNotFoundError{Name: name})
			return 127
		}

		var words []string
		scanner := bufio.NewScanner(env.Stdin())
		for scanner.Scan() {
			tokens, err := shlex.Split(scanner.Text(), true)
			if err != nil {
				cmd.LogProgramError(env, err)
				return 1
			}
			words = append(words, tokens...)
		}
		if err := scanner.Err(); err != nil {
			return streamFailure(env, err)
		}

		batch := len(words)
		if *maxArgs > 0 {
			batch = *maxArgs
		}

		exitCode := 0
		for start := 0; start < len(words) || start == 0; start += batch {
			end := start + batch
			if end > len(words) {
				end = len(words)
			}

			args := append([]interface{}(nil), fixed...)
			for _, w := range words[start:end] {
				args = append(args, w)
			}
			if *trace {
				fmt.Fprintln(env.Stderr(), strings.Join(append([]string{name}, formatAll(env, args)...), " "))
			}

			if _, err := fn.Execute(env, args); err != nil {
				if shell.IsInterruption(err) {
					env.Fail(err)
					return 1
				}
				cmd.LogProgramError(env, err)
				return 1
			}
			if code := env.ExitCode(); code != 0 {
				exitCode = 123
			}
			if batch == 0 {
				break
			}
		}
		return exitCode
	})
}

func formatAll(env *Env, values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = env.Session().Format(v, shell.Part)
	}
	return out
}

var _ BuiltinFunc = Xargs

func init() {
	mustAddBuiltin("xargs", Xargs)
}
