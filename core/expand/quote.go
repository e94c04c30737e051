package expand

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	globMeta  = `\*?[{`
	regexMeta = `.^$+{[]|()`
	// reserved characters that switch a word into filename generation
	reservedChars = "*(|<[?"
	// characters that need quoting to be read back literally
	specialChars = ` !"#$&'()*;<=>?[\]{|}~%`
)

// quoteState tracks shell quoting while walking a word one byte at a time.
type quoteState struct {
	escaped bool
	single  bool
	double  bool
}

// literal reports whether c is outside any quote or escape, updating the
// state as it goes.
func (q *quoteState) literal(c byte) bool {
	switch {
	case q.escaped:
		q.escaped = false
	case q.single:
		if c == '\'' {
			q.single = false
		}
	case q.double:
		if c == '\\' {
			q.escaped = true
		} else if c == '"' {
			q.double = false
		}
	case c == '\\':
		q.escaped = true
	case c == '\'':
		q.single = true
	case c == '"':
		q.double = true
	default:
		return true
	}
	return false
}

// Unquote removes one level of shell quoting from s. Inside double quotes
// a backslash only escapes ", \, $ and %.
func Unquote(s string) string {
	if !strings.ContainsAny(s, `\"'`) {
		return s
	}

	var buf strings.Builder
	var q quoteState
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case q.double && q.escaped:
			if !strings.ContainsRune(`"\$%`, rune(c)) {
				buf.WriteByte('\\')
			}
			buf.WriteByte(c)
			q.escaped = false
		case q.escaped:
			buf.WriteByte(c)
			q.escaped = false
		case q.single:
			if c == '\'' {
				q.single = false
			} else {
				buf.WriteByte(c)
			}
		case q.double:
			if c == '\\' {
				q.escaped = true
			} else if c == '"' {
				q.double = false
			} else {
				buf.WriteByte(c)
			}
		case c == '\\':
			q.escaped = true
		case c == '\'':
			q.single = true
		case c == '"':
			q.double = true
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

// unquoteGlob removes quoting from a pattern, escaping glob metacharacters
// that were quoted so they match literally.
func unquoteGlob(s string) string {
	var buf strings.Builder
	var q quoteState
	literal := func(c byte) {
		if strings.IndexByte(globMeta, c) >= 0 {
			buf.WriteByte('\\')
		}
		buf.WriteByte(c)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case q.escaped:
			literal(c)
			q.escaped = false
		case q.single:
			if c == '\'' {
				q.single = false
			} else {
				literal(c)
			}
		case q.double:
			if c == '\\' {
				q.escaped = true
			} else if c == '"' {
				q.double = false
			} else {
				literal(c)
			}
		case c == '\\':
			q.escaped = true
		case c == '\'':
			q.single = true
		case c == '"':
			q.double = true
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

// Quote levels used by the q flag.
const (
	quoteReadable = iota
	quoteBackslash
	quoteSingle
	quoteDouble
	quotePosix
)

func quote(s string, level int) string {
	var buf strings.Builder
	switch level {
	case quoteBackslash:
		for _, r := range s {
			switch {
			case r < 32 || r >= 127:
				buf.WriteString(`$'\` + strconv.FormatInt(int64(r), 8) + `'`)
			case strings.ContainsRune(specialChars, r):
				buf.WriteByte('\\')
				buf.WriteRune(r)
			default:
				buf.WriteRune(r)
			}
		}
	case quoteSingle:
		buf.WriteByte('\'')
		buf.WriteString(strings.ReplaceAll(s, `'`, `'\''`))
		buf.WriteByte('\'')
	case quoteDouble:
		buf.WriteByte('"')
		for _, r := range s {
			if strings.ContainsRune(`"\$%`, r) {
				buf.WriteByte('\\')
			}
			buf.WriteRune(r)
		}
		buf.WriteByte('"')
	case quotePosix:
		buf.WriteString("$'")
		for _, r := range s {
			switch {
			case r == '\n':
				buf.WriteString(`\n`)
			case r == '\t':
				buf.WriteString(`\t`)
			case r == '\r':
				buf.WriteString(`\r`)
			case r == '\'':
				buf.WriteString(`\'`)
			case r < 32 || r >= 127:
				buf.WriteString(`\` + strconv.FormatInt(int64(r), 8))
			default:
				buf.WriteRune(r)
			}
		}
		buf.WriteByte('\'')
	default:
		for _, r := range s {
			if r < 32 || r >= 127 || strings.ContainsRune(specialChars, r) {
				return quote(s, quoteSingle)
			}
		}
		return s
	}
	return buf.String()
}

// ansiEscape interprets the backslash escapes of a $'...' string.
func ansiEscape(s string) string {
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			buf.WriteByte(c)
			continue
		}
		i++
		switch c = s[i]; c {
		case 'a':
			buf.WriteByte('\a')
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case '\\':
			buf.WriteByte('\\')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			n, _ := strconv.ParseUint(s[i:j], 8, 32)
			buf.WriteRune(rune(n))
			i = j - 1
		case 'u':
			j := i + 1
			for j < len(s) && j < i+5 && isHex(s[j]) {
				j++
			}
			if j == i+1 {
				buf.WriteByte('u')
				continue
			}
			n, _ := strconv.ParseUint(s[i+1:j], 16, 32)
			buf.WriteRune(rune(n))
			i = j - 1
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// visible renders control characters in caret notation.
func visible(s string) string {
	var buf strings.Builder
	for _, r := range s {
		if r < 32 {
			buf.WriteByte('^')
			buf.WriteRune(r + '@')
		} else {
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

// sharp turns a decimal code point into its character.
func sharp(s string) string {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > utf8.MaxRune {
		n = 0
	}
	return string(rune(n))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}

// numericCompare orders strings so embedded runs of digits compare by
// value, "file2" before "file10".
func numericCompare(a, b string, fold bool) int {
	if fold {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			trimmedA, trimmedB := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(trimmedA) != len(trimmedB) {
				return compareInt(len(trimmedA), len(trimmedB))
			}
			if trimmedA != trimmedB {
				return strings.Compare(trimmedA, trimmedB)
			}
			if len(na) != len(nb) {
				// more leading zeros sorts first
				return compareInt(len(nb), len(na))
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return compareInt(int(a[0]), int(b[0]))
		}
		a, b = a[1:], b[1:]
	}
	return compareInt(len(a), len(b))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
