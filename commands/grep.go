package commands

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
)

// patternList collects repeated -e flags without splitting on commas.
type patternList []string

func (p *patternList) Set(value string, _ getopt.Option) error {
	*p = append(*p, value)
	return nil
}

func (p *patternList) String() string {
	return strings.Join(*p, "\n")
}

type grepOptions struct {
	fixed      bool
	ignoreCase bool
	word       bool
	wholeLine  bool
}

// compile joins the patterns into a single expression. Each pattern may
// hold several newline separated alternatives.
func (o grepOptions) compile(patterns []string) (*regexp.Regexp, error) {
	var alternatives []string
	for _, pattern := range patterns {
		for _, alt := range strings.Split(pattern, "\n") {
			if o.fixed {
				alt = regexp.QuoteMeta(alt)
			}
			switch {
			case o.wholeLine:
				alt = `^(?:` + alt + `)$`
			case o.word:
				alt = `\b(?:` + alt + `)\b`
			}
			alternatives = append(alternatives, alt)
		}
	}

	expr := strings.Join(alternatives, "|")
	if o.ignoreCase {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// Grep implements the POSIX grep command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/grep.html
func Grep(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "grep [-cFHhilnoqvwx] [-e PATTERN]... [PATTERN] [FILE]...",
		Short: "Search files for text matching a pattern.",
	}

	var patterns patternList
	var opts grepOptions
	flags := cmd.Flags()
	flags.FlagLong(&patterns, "regexp", 'e', "use PATTERN for matching", "PATTERN")
	flags.Flag(&opts.fixed, 'F', "treat patterns as fixed strings")
	flags.Flag(&opts.ignoreCase, 'i', "perform pattern matching in searches without regard to case")
	flags.Flag(&opts.word, 'w', "only match whole words")
	flags.Flag(&opts.wholeLine, 'x', "only match whole lines")
	invert := flags.Bool('v', "select lines not matching any of the specified patterns")
	lineNumbers := flags.Bool('n', "show line numbers")
	countOnly := flags.Bool('c', "only write a count of selected lines")
	namesOnly := flags.Bool('l', "only write the names of files with selected lines")
	quiet := flags.Bool('q', "write nothing, exit 0 on any selected line")
	onlyMatching := flags.Bool('o', "write only the matched parts of lines")
	withName := flags.Bool('H', "prefix each line with its file name")
	noName := flags.Bool('h', "never prefix lines with file names")
	help := false
	cmd.ShowHelp = &help
	flags.FlagLong(&help, "help", 0, "show this help and exit")

	return cmd.Run(env, func() int {
		args := flags.Args()
		if len(patterns) == 0 {
			if len(args) == 0 {
				cmd.LogProgramError(env, errors.New("missing argument PATTERN"))
				return 2
			}
			patterns, args = patternList{args[0]}, args[1:]
		}

		regex, err := opts.compile(patterns)
		if err != nil {
			cmd.LogProgramError(env, err)
			return 2
		}

		showNames := (len(args) > 1 || *withName) && !*noName
		selected := 0
		exitCode := cmd.RunEachFileOrStdin(env, args, func(name string, fd io.Reader) error {
			w := &writeErr{w: env.Stdout()}
			prefix := func(lineNo int) string {
				var sb strings.Builder
				if showNames {
					sb.WriteString(name + ":")
				}
				if *lineNumbers {
					sb.WriteString(strconv.Itoa(lineNo) + ":")
				}
				return sb.String()
			}

			count := 0
			scanner := bufio.NewScanner(fd)
			for lineNo := 1; scanner.Scan() && w.err == nil; lineNo++ {
				line := scanner.Bytes()
				if regex.Match(line) == *invert {
					continue
				}
				count++

				switch {
				case *quiet || *namesOnly:
					selected += count
					if !*quiet {
						w.Printf("%s\n", name)
					}
					return w.err
				case *countOnly:
				case *onlyMatching:
					if *invert {
						continue
					}
					for _, match := range regex.FindAll(line, -1) {
						w.Printf("%s%s\n", prefix(lineNo), match)
					}
				default:
					w.Printf("%s%s\n", prefix(lineNo), line)
				}
			}

			if *countOnly {
				if showNames {
					w.Printf("%s:%d\n", name, count)
				} else {
					w.Printf("%d\n", count)
				}
			}

			selected += count
			if w.err != nil {
				return w.err
			}
			return scanner.Err()
		})

		switch {
		case *quiet && selected > 0:
			return 0
		case exitCode != 0:
			return 2
		case selected == 0:
			return 1
		default:
			return 0
		}
	})
}

var _ BuiltinFunc = Grep

func init() {
	mustAddBuiltin("grep", Grep)
}
