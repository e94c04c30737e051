package commands

import (
	"fmt"
	"strings"

	"github.com/josephlewis42/pipesh/core/shell"
)

// Which implements the UNIX which command, printing the scope:name key a
// bare command name resolves to.
func Which(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "which [COMMAND...]",
		Short: "Locate a command.",
	}

	return cmd.Run(env, func() int {
		exitCode := 0
		for _, arg := range cmd.Flags().Args() {
			res, ok := lookPath(env, arg)
			if !ok {
				exitCode = 1
				continue
			}
			fmt.Fprintln(env.Stdout(), res)
		}
		return exitCode
	})
}

func lookPath(env *Env, name string) (string, bool) {
	if v, err := env.Get(name); err == nil {
		if _, ok := v.(shell.Function); ok {
			return name + ": variable", true
		}
	}

	name = strings.ToLower(name)
	if strings.Contains(name, ":") {
		return name, env.Session().Command(name) != nil
	}

	proc := env.Session().Processor()
	for _, scope := range strings.Split(env.Session().ScopePath(), ":") {
		if scope != "*" {
			if proc.GetCommand(scope+":"+name, "") != nil {
				return scope + ":" + name, true
			}
			continue
		}
		for _, key := range proc.Commands() {
			if strings.HasSuffix(key, ":"+name) {
				return key, true
			}
		}
	}
	return "", false
}

var _ BuiltinFunc = Which

func init() {
	mustAddBuiltin("which", Which)
}
