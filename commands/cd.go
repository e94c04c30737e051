package commands

// Cd changes the session's working directory.
func Cd(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "cd [DIR]",
		Short: "Change the working directory, DIR defaults to $HOME and - is the previous directory.",
	}

	return cmd.Run(env, func() int {
		args := cmd.Flags().Args()

		var dir string
		switch {
		case len(args) > 1:
			cmd.LogProgramError(env, errTooManyArguments)
			return 1
		case len(args) == 0:
			dir = env.Getenv("HOME")
		case args[0] == "-":
			dir = env.Getenv("OLDPWD")
		default:
			dir = args[0]
		}
		if dir == "" {
			dir = "/"
		}

		previous := env.Getwd()
		if err := env.Session().SetCurrentDir(dir); err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}
		env.Session().Env().Setenv("OLDPWD", previous)
		return 0
	})
}

var _ BuiltinFunc = Cd

func init() {
	mustAddBuiltin("cd", Cd)
}
