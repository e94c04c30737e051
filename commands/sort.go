package commands

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Sort implements a subset of the POSIX sort command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/sort.html
func Sort(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "sort [-fnru] [FILE]...",
		Short: "Sort lines of text files.",
	}

	ignoreCase := cmd.Flags().Bool('f', "fold lower case to upper case characters")
	numeric := cmd.Flags().Bool('n', "compare according to string numerical value")
	reverse := cmd.Flags().Bool('r', "reverse the result of comparisons")
	unique := cmd.Flags().Bool('u', "output only the first of an equal run")

	return cmd.Run(env, func() int {
		var lines []string
		exitCode := cmd.RunEachFileOrStdin(env, cmd.Flags().Args(), func(name string, fd io.Reader) error {
			scanner := bufio.NewScanner(fd)
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
			return scanner.Err()
		})
		if exitCode != 0 {
			return exitCode
		}

		key := func(s string) string {
			if *ignoreCase {
				return strings.ToUpper(s)
			}
			return s
		}
		compare := func(a, b string) int {
			if *numeric {
				na, nb := leadingNumber(a), leadingNumber(b)
				switch {
				case na < nb:
					return -1
				case na > nb:
					return 1
				}
			}
			return strings.Compare(key(a), key(b))
		}

		sort.SliceStable(lines, func(i, j int) bool {
			if *reverse {
				return compare(lines[i], lines[j]) > 0
			}
			return compare(lines[i], lines[j]) < 0
		})

		w := &writeErr{w: env.Stdout()}
		for i, line := range lines {
			if *unique && i > 0 && compare(lines[i-1], line) == 0 {
				continue
			}
			w.Println(line)
		}
		if w.err != nil {
			return streamFailure(env, w.err)
		}
		return 0
	})
}

// leadingNumber parses the number at the start of s, 0 if there isn't one.
func leadingNumber(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || (end == 0 && s[end] == '-')) {
		end++
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return n
}

var _ BuiltinFunc = Sort

func init() {
	mustAddBuiltin("sort", Sort)
}
