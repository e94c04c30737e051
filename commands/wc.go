package commands

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// wcCounts holds the totals of one input.
type wcCounts struct {
	name  string
	lines int
	words int
	bytes int
	chars int
}

func countInput(name string, r io.Reader) (*wcCounts, error) {
	counts := &wcCounts{name: name}
	br := bufio.NewReader(r)
	inWord := false
	for {
		ch, size, err := br.ReadRune()
		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return nil, err
		}

		counts.bytes += size
		counts.chars++
		if ch == '\n' {
			counts.lines++
		}
		if unicode.IsSpace(ch) {
			inWord = false
		} else if !inWord {
			inWord = true
			counts.words++
		}
	}
}

func (c *wcCounts) add(other *wcCounts) {
	c.lines += other.lines
	c.words += other.words
	c.bytes += other.bytes
	c.chars += other.chars
}

// value converts the counts to a shell map.
func (c *wcCounts) value() map[string]interface{} {
	out := map[string]interface{}{
		"lines": c.lines,
		"words": c.words,
		"bytes": c.bytes,
		"chars": c.chars,
	}
	if c.name != "" {
		out["name"] = c.name
	}
	return out
}

// Wc implements the POSIX command by the same name.
// https://pubs.opengroup.org/onlinepubs/009695399/utilities/wc.html
func Wc(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [--value] [FILE...]",
		Short: "Write the number of newlines, words, and bytes contained in each input file to the standard output.",
	}

	opts := cmd.Flags()
	showLines := opts.BoolLong("lines", 'l', "write the number of newlines in each file")
	showWords := opts.BoolLong("words", 'w', "write the number of words in each file")
	showBytes := opts.BoolLong("bytes", 'c', "write the number of bytes in each file")
	showChars := opts.BoolLong("chars", 'm', "write the number of characters in each file")
	asValue := opts.BoolLong("value", 0, "return the counts as a map instead of writing them")

	return cmd.Run(env, func() int {
		files := opts.Args()

		var all []*wcCounts
		exitCode := cmd.RunEachFileOrStdin(env, files, func(name string, fd io.Reader) error {
			if len(files) == 0 {
				name = ""
			}
			counts, err := countInput(name, fd)
			if err != nil {
				return err
			}
			all = append(all, counts)
			return nil
		})

		if *asValue {
			switch {
			case len(files) <= 1 && len(all) == 1:
				env.SetResult(all[0].value())
			default:
				var list []interface{}
				for _, counts := range all {
					list = append(list, counts.value())
				}
				env.SetResult(list)
			}
			return exitCode
		}

		defaults := !*showLines && !*showWords && !*showBytes && !*showChars
		write := func(c *wcCounts) {
			var cols []string
			if *showLines || defaults {
				cols = append(cols, strconv.Itoa(c.lines))
			}
			if *showWords || defaults {
				cols = append(cols, strconv.Itoa(c.words))
			}
			if *showBytes || defaults {
				cols = append(cols, strconv.Itoa(c.bytes))
			}
			if *showChars {
				cols = append(cols, strconv.Itoa(c.chars))
			}
			if c.name != "" {
				cols = append(cols, c.name)
			}
			io.WriteString(env.Stdout(), strings.Join(cols, " ")+"\n")
		}

		total := &wcCounts{name: "total"}
		for _, counts := range all {
			write(counts)
			total.add(counts)
		}
		if len(files) > 1 {
			write(total)
		}
		return exitCode
	})
}

var _ BuiltinFunc = Wc

func init() {
	mustAddBuiltin("wc", Wc)
}
