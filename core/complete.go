package core

import (
	"sort"
	"strings"

	"github.com/josephlewis42/pipesh/core/scanner"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
)

// completer suggests command names for the first word of a statement and
// file names for the others.
type completer struct {
	shell *Shell
}

// Do implements readline.AutoCompleter.
func (c *completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if c.shell == nil || c.shell.session == nil {
		return nil, 0
	}

	word, first := currentWord(string(line[:pos]))
	var candidates []string
	if first && !strings.Contains(word, "/") {
		candidates = c.commands(word)
	} else {
		candidates = c.files(word)
	}

	base := word[strings.LastIndex(word, "/")+1:]
	for _, candidate := range candidates {
		newLine = append(newLine, []rune(strings.TrimPrefix(candidate, base)))
	}
	return newLine, len([]rune(base))
}

// currentWord splits the word under the cursor off text and reports whether
// it's the first word of a statement.
func currentWord(text string) (word string, first bool) {
	start := strings.LastIndexFunc(text, scanner.IsBlank) + 1
	if i := strings.LastIndexAny(text, "|;&(){}") + 1; i > start {
		start = i
	}
	word = text[start:]
	before := strings.TrimRightFunc(text[:start], scanner.IsBlank)
	first = before == "" || strings.ContainsAny(before[len(before)-1:], "|;&({")
	return word, first
}

func (c *completer) commands(prefix string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range c.shell.runtime.Processor().Commands() {
		short := name[strings.Index(name, ":")+1:]
		for _, candidate := range []string{short, name} {
			if strings.HasPrefix(candidate, prefix) && !seen[candidate] {
				seen[candidate] = true
				out = append(out, candidate+" ")
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *completer) files(word string) []string {
	session := c.shell.session
	dir, base := ".", word
	if i := strings.LastIndex(word, "/"); i >= 0 {
		dir, base = word[:i+1], word[i+1:]
	}

	entries, err := afero.ReadDir(session.Fs(), vos.Resolve(session.CurrentDir(), dir))
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base) || (strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".")) {
			continue
		}
		if entry.IsDir() {
			out = append(out, name+"/")
		} else {
			out = append(out, name+" ")
		}
	}
	return out
}
