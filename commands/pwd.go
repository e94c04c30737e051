package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Pwd implements the POSIX pwd command. -P resolves symbolic links when the
// filesystem supports them.
func Pwd(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "pwd [-L|-P]",
		Short: "Print the name of the current working directory.",
	}
	cmd.Flags().Bool('L', "print the directory as it was entered (default)")
	physical := cmd.Flags().Bool('P', "print the directory with symbolic links resolved")

	return cmd.RunE(env, func() error {
		dir := env.Getwd()
		if *physical {
			resolved, err := resolveLinks(env.Fs(), dir)
			if err != nil {
				return err
			}
			dir = resolved
		}
		_, err := fmt.Fprintln(env.Stdout(), dir)
		return err
	})
}

// resolveLinks follows symbolic links in each element of an absolute path.
// Filesystems without link support return the path unchanged.
func resolveLinks(fs afero.Fs, dir string) (string, error) {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return dir, nil
	}

	const maxLinks = 40
	resolved := "/"
	for links, rest := 0, filepath.Clean(dir); rest != "/" && rest != ""; {
		elem, after, more := strings.Cut(rest[1:], "/")
		rest = ""
		if more {
			rest = "/" + after
		}

		next := filepath.Join(resolved, elem)
		target, err := reader.ReadlinkIfPossible(next)
		if err != nil {
			// not a link
			resolved = next
			continue
		}
		if links++; links > maxLinks {
			return "", fmt.Errorf("too many levels of symbolic links")
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(resolved, target)
		}
		rest = filepath.Clean(target + rest)
		resolved = "/"
	}
	return resolved, nil
}

var _ BuiltinFunc = Pwd

func init() {
	mustAddBuiltin("pwd", Pwd)
}
