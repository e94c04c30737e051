package commands

import (
	"fmt"
	"sort"
	"strings"
)

// EnvCmd implements the POSIX env command. Assignments before the first
// non-assignment argument are added to the session environment.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/env.html
func EnvCmd(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "env [-u NAME]... [--value] [NAME=VALUE]...",
		Short: "Set or print the environment.",
	}

	unset := cmd.Flags().ListLong("unset", 'u', "remove variable from the environment")
	asValue := cmd.Flags().BoolLong("value", 0, "return the environment as a map instead of writing it")

	return cmd.RunE(env, func() error {
		venv := env.Session().Env()
		for _, name := range *unset {
			if err := venv.Unsetenv(name); err != nil {
				return err
			}
		}

		args := cmd.Flags().Args()
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid assignment %q", arg)
			}
			if err := venv.Setenv(key, value); err != nil {
				return err
			}
		}

		if *asValue {
			vars := make(map[string]interface{})
			for _, envDef := range venv.Environ() {
				key, value, _ := strings.Cut(envDef, "=")
				vars[key] = value
			}
			env.SetResult(vars)
			return nil
		}

		if len(args) == 0 && len(*unset) == 0 {
			environ := venv.Environ()
			sort.Strings(environ)
			w := &writeErr{w: env.Stdout()}
			for _, envDef := range environ {
				w.Println(envDef)
			}
			return w.err
		}

		return nil
	})
}

var _ BuiltinFunc = EnvCmd

func init() {
	mustAddBuiltin("env", EnvCmd)
}
