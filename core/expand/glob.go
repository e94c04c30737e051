package expand

import (
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// maxGlobDepth bounds recursive ** walks so symlink loops terminate.
const maxGlobDepth = 32

// GlobToRegexp translates a glob into regular expression syntax. When
// shortest is set, * is non-greedy. Groups like {a,b} become alternations
// and can't be nested.
func GlobToRegexp(glob string, shortest bool) (string, error) {
	return translateGlob(glob, shortest, false)
}

// translateGlob does the work for GlobToRegexp. In path mode wildcards stop
// at slashes and ** crosses them.
func translateGlob(glob string, shortest, pathMode bool) (string, error) {
	var sb strings.Builder
	inGroup := false
	next := func(i int) byte {
		if i < len(glob) {
			return glob[i]
		}
		return 0
	}

	for i := 0; i < len(glob); {
		c := glob[i]
		i++
		switch c {
		case '*':
			switch {
			case pathMode && next(i) == '*':
				i++
				sb.WriteString(".*")
			case pathMode:
				sb.WriteString("[^/]*")
			case shortest:
				sb.WriteString(".*?")
			default:
				sb.WriteString(".*")
			}
		case '?':
			if pathMode {
				sb.WriteString("[^/]")
			} else {
				sb.WriteString(".")
			}
		case ',':
			if inGroup {
				sb.WriteString(")|(?:")
			} else {
				sb.WriteByte(',')
			}
		case '[':
			sb.WriteByte('[')
			switch next(i) {
			case '^':
				sb.WriteString(`\^`)
				i++
			case '!':
				sb.WriteByte('^')
				i++
			}
			if next(i) == '-' {
				sb.WriteByte('-')
				i++
			}
			closed := false
			inLeft := false
			var left byte
			for i < len(glob) {
				c = glob[i]
				i++
				if c == ']' {
					closed = true
					break
				}
				if c == '\\' || c == '[' {
					sb.WriteByte('\\')
				}
				sb.WriteByte(c)
				if c != '-' {
					inLeft = true
					left = c
					continue
				}
				if !inLeft {
					return "", &PatternError{Pattern: glob, Index: i - 1, Msg: "invalid range"}
				}
				r := next(i)
				if r == 0 || r == ']' {
					continue
				}
				i++
				if r < left {
					return "", &PatternError{Pattern: glob, Index: i - 3, Msg: "invalid range"}
				}
				sb.WriteByte(r)
				inLeft = false
			}
			if !closed {
				return "", &PatternError{Pattern: glob, Index: i - 1, Msg: "missing ']'"}
			}
			sb.WriteByte(']')
		case '\\':
			if i == len(glob) {
				return "", &PatternError{Pattern: glob, Index: i - 1, Msg: "no character to escape"}
			}
			c = glob[i]
			i++
			if strings.IndexByte(globMeta, c) >= 0 || strings.IndexByte(regexMeta, c) >= 0 {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
		case '{':
			if inGroup {
				return "", &PatternError{Pattern: glob, Index: i - 1, Msg: "cannot nest groups"}
			}
			sb.WriteString("(?:(?:")
			inGroup = true
		case '}':
			if inGroup {
				sb.WriteString("))")
				inGroup = false
			} else {
				sb.WriteString(`\}`)
			}
		default:
			if strings.IndexByte(regexMeta, c) >= 0 {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
		}
	}
	if inGroup {
		return "", &PatternError{Pattern: glob, Index: len(glob) - 1, Msg: "missing '}'"}
	}
	return sb.String(), nil
}

// compileGlob compiles a glob so it must match a whole string.
func compileGlob(glob string, shortest, pathMode bool) (*regexp.Regexp, error) {
	expr, err := translateGlob(glob, shortest, pathMode)
	if err != nil {
		return nil, err
	}
	return regexp.Compile("^(?:" + expr + ")$")
}

// generateFileNames expands a word containing unquoted reserved characters
// into the sorted list of matching paths below the current directory.
func (e *expander) generateFileNames(arg string) ([]string, error) {
	cwd := e.eval.CurrentDir()
	if cwd == "" || e.inQuote {
		return []string{arg}, nil
	}

	// plain is the unquoted word used for messages and the directory prefix,
	// pattern keeps quoted metacharacters escaped.
	var plain, pattern strings.Builder
	plainMeta, patternMeta := -1, -1
	var q quoteState
	quoted := func(c byte) {
		plain.WriteByte(c)
		if strings.IndexByte(globMeta, c) >= 0 || strings.IndexByte(reservedChars, c) >= 0 {
			pattern.WriteByte('\\')
		}
		pattern.WriteByte(c)
	}
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch {
		case q.double && q.escaped:
			if !strings.ContainsRune(`"\$%`, rune(c)) {
				plain.WriteByte('\\')
				pattern.WriteString(`\\`)
			}
			quoted(c)
			q.escaped = false
		case q.escaped:
			quoted(c)
			q.escaped = false
		case q.single:
			if c == '\'' {
				q.single = false
			} else {
				quoted(c)
			}
		case q.double:
			if c == '\\' {
				q.escaped = true
			} else if c == '"' {
				q.double = false
			} else {
				quoted(c)
			}
		case c == '\\':
			q.escaped = true
		case c == '\'':
			q.single = true
		case c == '"':
			q.double = true
		default:
			if plainMeta < 0 && strings.IndexByte(reservedChars, c) >= 0 {
				plainMeta, patternMeta = plain.Len(), pattern.Len()
			}
			plain.WriteByte(c)
			pattern.WriteByte(c)
		}
	}
	if plainMeta < 0 {
		return []string{arg}, nil
	}

	org := plain.String()
	glob := pattern.String()
	dir, prefix := cwd, ""
	if i := strings.LastIndexByte(org[:plainMeta], '/'); i >= 0 {
		sub := org[:i]
		switch {
		case sub == "":
			dir = "/"
		case path.IsAbs(sub):
			dir = path.Clean(sub)
		default:
			dir = path.Join(cwd, sub)
		}
		prefix = sub + "/"
		glob = glob[strings.LastIndexByte(glob[:patternMeta], '/')+1:]
	}

	matcher, err := compileGlob(glob, false, true)
	if err != nil {
		return nil, err
	}

	depth := strings.Count(glob, "/") + 1
	if strings.Contains(glob, "**") {
		depth = maxGlobDepth
	}

	var matches []string
	walkVisible(e.eval.Fs(), dir, depth, func(rel string) {
		if matcher.MatchString(rel) {
			matches = append(matches, prefix+rel)
		}
	})
	if len(matches) == 0 {
		return nil, &NoMatchError{Pattern: org}
	}
	sort.Strings(matches)
	return matches, nil
}

// walkVisible calls fn with the path of every non-hidden entry under root
// relative to root, following symbolic links, down to depth levels.
// Unreadable directories are skipped.
func walkVisible(fs afero.Fs, root string, depth int, fn func(rel string)) {
	var walk func(dir, rel string, level int)
	walk = func(dir, rel string, level int) {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			return
		}
		for _, fi := range entries {
			name := fi.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := path.Join(dir, name)
			if fi.Mode()&os.ModeSymlink != 0 {
				if target, err := fs.Stat(full); err == nil {
					fi = target
				}
			}
			r := name
			if rel != "" {
				r = rel + "/" + name
			}
			fn(r)
			if fi.IsDir() && level+1 < depth {
				walk(full, r, level+1)
			}
		}
	}
	walk(root, "", 0)
}
