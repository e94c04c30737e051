package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/spf13/afero"
)

// Rm implements a POSIX rm command.
func Rm(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "rm [-dfrv] FILE...",
		Short: "Remove files or directories.",
	}

	opts := cmd.Flags()
	recursive := opts.BoolLong("recursive", 'r', "remove directories and their contents recursively")
	recursiveUpper := opts.Bool('R', "same as -r")
	force := opts.BoolLong("force", 'f', "ignore missing files and arguments, never prompt")
	emptyDirs := opts.BoolLong("dir", 'd', "remove empty directories")
	verbose := opts.BoolLong("verbose", 'v', "explain what is being done")

	remove := func(name, resolved string) error {
		if base := path.Base(name); base == "." || base == ".." {
			return fmt.Errorf("refusing to remove '.' or '..' directory: skipping %q", name)
		}

		info, err := env.Fs().Stat(resolved)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if *force {
				return nil
			}
			return fmt.Errorf("can't remove %q: no such file or directory", name)
		case err != nil:
			return fmt.Errorf("can't stat %q: %v", name, err)
		}

		if info.IsDir() {
			switch {
			case *recursive:
				err = env.Fs().RemoveAll(resolved)
			case *emptyDirs:
				if empty, _ := afero.IsEmpty(env.Fs(), resolved); !empty {
					return fmt.Errorf("can't remove %q: directory not empty", name)
				}
				err = env.Fs().Remove(resolved)
			default:
				return fmt.Errorf("can't remove %q: is a directory", name)
			}
		} else {
			err = env.Fs().Remove(resolved)
		}

		if err != nil {
			return fmt.Errorf("can't remove %q: %v", name, err)
		}
		if *verbose {
			fmt.Fprintf(env.Stdout(), "removed %q\n", name)
		}
		return nil
	}

	return cmd.Run(env, func() int {
		*recursive = *recursive || *recursiveUpper
		if *force && len(opts.Args()) == 0 {
			return 0
		}
		return forEachOperand(env, cmd, opts.Args(), remove)
	})
}

var _ BuiltinFunc = Rm

func init() {
	mustAddBuiltin("rm", Rm)
}
