package commands

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Permission classes of a symbolic mode.
const (
	classUser  fs.FileMode = 0700
	classGroup fs.FileMode = 0070
	classOther fs.FileMode = 0007
	classAll               = classUser | classGroup | classOther

	permRead  fs.FileMode = 0444
	permWrite fs.FileMode = 0222
	permExec  fs.FileMode = 0111

	// chmodBits are the bits a mode expression may change.
	chmodBits = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky
)

// ModeFunc computes a new mode from the current one.
type ModeFunc func(orig fs.FileMode) fs.FileMode

// ParseMode parses an octal mode such as 755 or a comma separated list of
// symbolic clauses such as u+x,go-w into a ModeFunc. Only permission,
// setuid, setgid and sticky bits are ever changed.
func ParseMode(expr string) (ModeFunc, error) {
	if octal, err := strconv.ParseUint(expr, 8, 32); err == nil {
		if octal > 07777 {
			return nil, fmt.Errorf("invalid mode: %q", expr)
		}
		set := fs.FileMode(octal) & fs.ModePerm
		if octal&04000 != 0 {
			set |= fs.ModeSetuid
		}
		if octal&02000 != 0 {
			set |= fs.ModeSetgid
		}
		if octal&01000 != 0 {
			set |= fs.ModeSticky
		}
		return func(orig fs.FileMode) fs.FileMode {
			return orig&^chmodBits | set
		}, nil
	}

	var clauses []ModeFunc
	for _, text := range strings.Split(expr, ",") {
		clause, err := parseClause(text)
		if err != nil {
			return nil, fmt.Errorf("invalid mode: %q: %v", expr, err)
		}
		clauses = append(clauses, clause)
	}

	return func(orig fs.FileMode) fs.FileMode {
		mode := orig
		for _, clause := range clauses {
			mode = clause(mode)
		}
		return mode
	}, nil
}

// parseClause parses who followed by one or more op/permission groups,
// e.g. "ug+rw-x".
func parseClause(text string) (ModeFunc, error) {
	var who fs.FileMode
	i := 0
	for ; i < len(text) && strings.IndexByte("ugoa", text[i]) >= 0; i++ {
		switch text[i] {
		case 'u':
			who |= classUser
		case 'g':
			who |= classGroup
		case 'o':
			who |= classOther
		case 'a':
			who |= classAll
		}
	}
	if i == len(text) {
		return nil, fmt.Errorf("no operator in %q", text)
	}

	explicitWho := who != 0
	if !explicitWho {
		who = classAll
	}

	type action struct {
		op         byte
		perm       fs.FileMode
		special    fs.FileMode
		execIfAnyX bool
	}
	var actions []action
	for i < len(text) {
		op := text[i]
		if op != '+' && op != '-' && op != '=' {
			return nil, fmt.Errorf("unknown operator %q", op)
		}
		i++

		a := action{op: op}
		for ; i < len(text) && strings.IndexByte("+-=", text[i]) < 0; i++ {
			switch text[i] {
			case 'r':
				a.perm |= permRead
			case 'w':
				a.perm |= permWrite
			case 'x':
				a.perm |= permExec
			case 'X':
				a.execIfAnyX = true
			case 's':
				a.special |= specialBits(who, explicitWho) &^ fs.ModeSticky
			case 't':
				a.special |= specialBits(who, explicitWho) & fs.ModeSticky
			default:
				return nil, fmt.Errorf("unknown permission %q", text[i])
			}
		}
		actions = append(actions, a)
	}

	return func(orig fs.FileMode) fs.FileMode {
		mode := orig
		for _, a := range actions {
			perm := a.perm
			if a.execIfAnyX && (orig.IsDir() || orig&permExec != 0) {
				perm |= permExec
			}
			perm &= who

			switch a.op {
			case '+':
				mode |= perm | a.special
			case '-':
				mode &^= perm | a.special
			case '=':
				mode = mode&^who&^specialBits(who, explicitWho) | perm | a.special
			}
		}
		return orig&^chmodBits | mode&chmodBits
	}, nil
}

// specialBits returns the setuid, setgid and sticky bits that belong to the
// classes in who.
func specialBits(who fs.FileMode, explicitWho bool) fs.FileMode {
	var out fs.FileMode
	if who&classUser != 0 {
		out |= fs.ModeSetuid
	}
	if who&classGroup != 0 {
		out |= fs.ModeSetgid
	}
	if !explicitWho || who&classOther != 0 {
		out |= fs.ModeSticky
	}
	return out
}

// Chmod implements a POSIX chmod command.
func Chmod(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "chmod [-Rv] MODE FILE...",
		Short: "Change the mode of each FILE to MODE.",
	}
	opts := cmd.Flags()
	recursive := opts.BoolLong("recursive", 'R', "change files and directories recursively")
	verbose := opts.BoolLong("verbose", 'v', "describe every file processed")

	return cmd.Run(env, func() int {
		args := opts.Args()
		switch len(args) {
		case 0:
			cmd.LogProgramError(env, errMissingOperand)
			return 1
		case 1:
			cmd.LogProgramError(env, fmt.Errorf("missing operand after %q", args[0]))
			return 1
		}

		change, err := ParseMode(args[0])
		if err != nil {
			cmd.LogProgramError(env, err)
			return 1
		}

		apply := func(name, resolved string, info os.FileInfo) error {
			mode := change(info.Mode())
			if err := env.Fs().Chmod(resolved, mode); err != nil {
				return err
			}
			if *verbose {
				fmt.Fprintf(env.Stdout(), "mode of %q changed from %04o (%s) to %04o (%s)\n",
					name, uint32(info.Mode().Perm()), info.Mode().Perm(), uint32(mode.Perm()), mode.Perm())
			}
			return nil
		}

		exitCode := 0
		for _, name := range args[1:] {
			resolved := env.Resolve(name)
			info, err := env.Fs().Stat(resolved)
			switch {
			case err != nil:
			case *recursive && info.IsDir():
				err = afero.Walk(env.Fs(), resolved, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					return apply(name+strings.TrimPrefix(path, resolved), path, info)
				})
			default:
				err = apply(name, resolved, info)
			}

			if err != nil {
				cmd.LogProgramError(env, fmt.Errorf("cannot change %q: %v", name, err))
				exitCode = 1
			}
		}
		return exitCode
	})
}

var _ BuiltinFunc = Chmod

func init() {
	mustAddBuiltin("chmod", Chmod)
}
