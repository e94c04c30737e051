package commands

import (
	"fmt"
	"strconv"
	"time"
)

// Sleep waits for the given number of seconds, or a Go duration such as
// 150ms. Interrupting the job wakes it early.
func Sleep(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "sleep DURATION",
		Short: "Delay for a specified amount of time.",
	}

	return cmd.Run(env, func() int {
		args := cmd.Flags().Args()
		if len(args) != 1 {
			cmd.LogProgramError(env, errMissingOperand)
			return 1
		}

		d, err := parseSleep(args[0])
		if err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return 0
		case <-env.Context().Done():
			env.Fail(env.Context().Err())
			return 1
		}
	})
}

func parseSleep(arg string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(arg, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("invalid time interval %q", arg)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(arg)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid time interval %q", arg)
	}
	return d, nil
}

var _ BuiltinFunc = Sleep

func init() {
	mustAddBuiltin("sleep", Sleep)
}
