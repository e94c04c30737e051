package commands

// Kill interrupts jobs.
func Kill(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "kill %JOB...",
		Short: "Interrupt jobs of the session.",
	}

	return cmd.Run(env, func() int {
		args := cmd.Flags().Args()
		if len(args) == 0 {
			cmd.LogProgramError(env, errMissingOperand)
			return 1
		}

		exitCode := 0
		for _, arg := range args {
			job, err := selectJob(env, []string{arg})
			if err != nil {
				cmd.LogProgramError(env, err)
				exitCode = 1
				continue
			}
			job.Interrupt()
		}
		return exitCode
	})
}

var _ BuiltinFunc = Kill

func init() {
	mustAddBuiltin("kill", Kill)
}
