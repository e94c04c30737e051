package commands

import (
	"strings"
	"text/tabwriter"
)

// Help lists the commands a session can call, or shows the help of one
// builtin.
func Help(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "help [COMMAND]",
		Short: "List available commands or show help for one.",
	}

	return cmd.Run(env, func() int {
		args := cmd.Flags().Args()
		switch len(args) {
		case 0:
		case 1:
			builtin, ok := AllCommands[strings.TrimPrefix(args[0], Scope+":")]
			if !ok {
				cmd.LogProgramError(env, &unknownBuiltinError{args[0]})
				return 1
			}
			return builtin(&Env{Process: env.Process, args: []string{args[0], "--help"}})
		default:
			cmd.LogProgramError(env, errTooManyArguments)
			return 1
		}

		tw := tabwriter.NewWriter(env.Stdout(), 0, 0, 2, ' ', 0)
		byScope := make(map[string][]string)
		var scopes []string
		for _, name := range env.Session().Processor().Commands() {
			scope, function, _ := strings.Cut(name, ":")
			if _, ok := byScope[scope]; !ok {
				scopes = append(scopes, scope)
			}
			byScope[scope] = append(byScope[scope], function)
		}
		for _, scope := range scopes {
			tw.Write([]byte(scope + ":\t" + strings.Join(byScope[scope], " ") + "\n"))
		}
		if err := tw.Flush(); err != nil {
			return streamFailure(env, err)
		}
		return 0
	})
}

type unknownBuiltinError struct {
	name string
}

func (e *unknownBuiltinError) Error() string {
	return "no help for " + e.name
}

var _ BuiltinFunc = Help

func init() {
	mustAddBuiltin("help", Help)
}
