package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/pipesh/core/shell"
)

// Jobs lists the session's jobs.
func Jobs(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "jobs",
		Short: "List the jobs of the session.",
	}

	return cmd.RunE(env, func() error {
		w := &writeErr{w: env.Stdout()}
		for _, job := range env.Session().Jobs() {
			if job == env.Job().Root() {
				continue
			}
			w.Println(job.Describe(shell.Line))
		}
		return w.err
	})
}

// Fg moves a job to the foreground and waits for it. The job's result
// becomes the result of fg.
func Fg(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "fg [%JOB]",
		Short: "Resume a job in the foreground, the most recent one by default.",
	}

	return cmd.Run(env, func() int {
		job, err := selectJob(env, cmd.Flags().Args())
		if err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}

		fmt.Fprintln(env.Stderr(), job.Command())
		res, err := job.ForegroundFrom(env.Job())
		if err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}
		if res == nil {
			// Suspended or sent back to the background.
			return 0
		}

		env.SetResult(res.Value)
		return res.ExitCode
	})
}

// Bg resumes a suspended job in the background.
func Bg(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "bg [%JOB]",
		Short: "Resume a job in the background, the most recent one by default.",
	}

	return cmd.Run(env, func() int {
		job, err := selectJob(env, cmd.Flags().Args())
		if err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}

		if err := job.Background(); err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}
		fmt.Fprintf(env.Stdout(), "[%d] %s &\n", job.ID(), job.Command())
		return 0
	})
}

// selectJob finds the job named by args, "%2" or "2", or the most recent
// job other than the caller's own.
func selectJob(env *Env, args []string) (*shell.Job, error) {
	switch len(args) {
	case 0:
		jobs := env.Session().Jobs()
		for i := len(jobs) - 1; i >= 0; i-- {
			if jobs[i] != env.Job().Root() {
				return jobs[i], nil
			}
		}
		return nil, fmt.Errorf("no current job")
	case 1:
		id, err := strconv.Atoi(strings.TrimPrefix(args[0], "%"))
		if err != nil {
			return nil, fmt.Errorf("invalid job id %q", args[0])
		}
		return env.Session().Job(id)
	default:
		return nil, errTooManyArguments
	}
}

var (
	_ BuiltinFunc = Jobs
	_ BuiltinFunc = Fg
	_ BuiltinFunc = Bg
)

func init() {
	mustAddBuiltin("jobs", Jobs)
	mustAddBuiltin("fg", Fg)
	mustAddBuiltin("bg", Bg)
}
