package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/spf13/afero"
)

// forEachOperand calls fn with every operand and its resolved path. Failures
// are reported as "name: err" and make the exit code 1.
func forEachOperand(env *Env, cmd *SimpleCommand, operands []string, fn func(name, resolved string) error) int {
	if len(operands) == 0 {
		cmd.LogProgramError(env, errMissingOperand)
		return 1
	}

	exitCode := 0
	for _, name := range operands {
		if err := fn(name, env.Resolve(name)); err != nil {
			cmd.LogProgramError(env, err)
			exitCode = 1
		}
	}
	return exitCode
}

// Mkdir implements a POSIX mkdir command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/mkdir.html
func Mkdir(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "mkdir [-pv] [-m MODE] DIRECTORY...",
		Short: "Create directories if they don't exist.",
	}

	opts := cmd.Flags()
	parents := opts.BoolLong("parents", 'p', "make parents if needed")
	verbose := opts.BoolLong("verbose", 'v', "print line for every created directory")
	modeExpr := opts.StringLong("mode", 'm', "", "set the mode of created directories", "MODE")

	return cmd.Run(env, func() int {
		mode := fs.FileMode(0777)
		if *modeExpr != "" {
			change, err := ParseMode(*modeExpr)
			if err != nil {
				cmd.LogProgramError(env, err)
				return 1
			}
			mode = change(fs.ModeDir | 0777).Perm()
		}

		create := env.Fs().Mkdir
		if *parents {
			create = env.Fs().MkdirAll
		}

		return forEachOperand(env, cmd, opts.Args(), func(name, resolved string) error {
			if err := create(resolved, mode); err != nil {
				return fmt.Errorf("cannot create directory %q: %s", name, err)
			}
			if *modeExpr != "" {
				// Mkdir is subject to the umask of the backing filesystem.
				if err := env.Fs().Chmod(resolved, fs.ModeDir|mode); err != nil {
					return fmt.Errorf("cannot set mode of %q: %s", name, err)
				}
			}
			if *verbose {
				fmt.Fprintf(env.Stdout(), "mkdir: created directory %q\n", name)
			}
			return nil
		})
	})
}

// Rmdir implements a POSIX rmdir command.
func Rmdir(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "rmdir [-pv] DIRECTORY...",
		Short: "Remove empty directories.",
	}

	opts := cmd.Flags()
	parents := opts.BoolLong("parents", 'p', "remove DIRECTORY and its ancestors")
	verbose := opts.BoolLong("verbose", 'v', "print line for every deleted directory")

	removeEmpty := func(dir string) error {
		resolved := env.Resolve(dir)
		contents, err := afero.ReadDir(env.Fs(), resolved)
		switch {
		case err != nil:
			return fmt.Errorf("cannot read directory %q: %s", dir, err)
		case len(contents) > 0:
			return fmt.Errorf("directory not empty %q", dir)
		}
		if err := env.Fs().Remove(resolved); err != nil {
			return fmt.Errorf("cannot remove directory %q: %s", dir, err)
		}
		if *verbose {
			fmt.Fprintf(env.Stdout(), "rmdir: removed directory: %s\n", dir)
		}
		return nil
	}

	return cmd.Run(env, func() int {
		return forEachOperand(env, cmd, opts.Args(), func(name, _ string) error {
			dir := path.Clean(name)
			for {
				if err := removeEmpty(dir); err != nil {
					return err
				}
				if !*parents {
					return nil
				}
				dir = path.Dir(dir)
				if dir == "." || dir == "/" {
					return nil
				}
			}
		})
	})
}

// Touch implements a POSIX touch command.
func Touch(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "touch [-acm] [-r REF] FILE...",
		Short: "Update the access and modification times of files to now.",
	}

	opts := cmd.Flags()
	// Access times aren't tracked separately so -a and -m are accepted and
	// both times are always set.
	opts.Bool('a', "only change the access time")
	opts.Bool('m', "only change the modification time")
	noCreate := opts.BoolLong("no-create", 'c', "don't create files")
	reference := opts.StringLong("reference", 'r', "", "use the times of REF instead of now", "REF")

	return cmd.Run(env, func() int {
		when := time.Now()
		if *reference != "" {
			info, err := env.Fs().Stat(env.Resolve(*reference))
			if err != nil {
				cmd.LogProgramError(env, fmt.Errorf("failed to get attributes of %q: %s", *reference, err))
				return 1
			}
			when = info.ModTime()
		}

		return forEachOperand(env, cmd, opts.Args(), func(name, resolved string) error {
			err := env.Fs().Chtimes(resolved, when, when)
			switch {
			case err == nil:
				return nil
			case !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("setting times of %q: %s", name, err)
			case *noCreate:
				return nil
			}

			fd, err := env.Fs().Create(resolved)
			if err != nil {
				return fmt.Errorf("cannot touch %q: %s", name, err)
			}
			fd.Close()
			return env.Fs().Chtimes(resolved, when, when)
		})
	})
}

var (
	_ BuiltinFunc = Mkdir
	_ BuiltinFunc = Rmdir
	_ BuiltinFunc = Touch
)

func init() {
	mustAddBuiltin("mkdir", Mkdir)
	mustAddBuiltin("rmdir", Rmdir)
	mustAddBuiltin("touch", Touch)
}
