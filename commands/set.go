package commands

import (
	"strings"

	"github.com/josephlewis42/pipesh/core/shell"
)

// Set shows or assigns session variables. -x and +x turn the execution
// trace on and off.
func Set(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "set [-x|+x] [NAME [VALUE]...]",
		Short: "Show or assign session variables.",
	}

	trace := cmd.Flags().Bool('x', "echo each statement to stderr before running it")

	toggled := false
	args := env.Args()
	if len(args) > 1 && args[1] == "+x" {
		toggled = true
		env.Session().Put(shell.VarEcho, nil)
		env.args = append([]string{args[0]}, args[2:]...)
		env.values = env.values[1:]
	}

	return cmd.Run(env, func() int {
		if *trace {
			toggled = true
			env.Session().Put(shell.VarEcho, true)
		}

		rest := cmd.Flags().Args()
		values := env.Values()[len(env.Values())-len(rest):]
		switch {
		case len(rest) == 0 && toggled:
			return 0
		case len(rest) == 0:
			return listVariables(env)
		case strings.ContainsAny(rest[0], "$ "):
			cmd.LogProgramError(env, &invalidNameError{rest[0]})
			return 1
		case len(values) == 1:
			env.Put(rest[0], nil)
		case len(values) == 2:
			env.Put(rest[0], values[1])
		default:
			env.Put(rest[0], append([]interface{}(nil), values[1:]...))
		}
		return 0
	})
}

func listVariables(env *Env) int {
	names, err := env.Session().Get(shell.VarVariables)
	if err != nil {
		return streamFailure(env, err)
	}

	w := &writeErr{w: env.Stdout()}
	for _, name := range names.([]string) {
		value, err := env.Get(name)
		if err != nil {
			continue
		}
		w.Printf("%s=%s\n", name, env.Session().Format(value, shell.Line))
	}
	if w.err != nil {
		return streamFailure(env, w.err)
	}
	return 0
}

type invalidNameError struct {
	name string
}

func (e *invalidNameError) Error() string {
	return "invalid variable name: " + e.name
}

var _ BuiltinFunc = Set

func init() {
	mustAddBuiltin("set", Set)
}
