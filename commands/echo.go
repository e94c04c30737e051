package commands

import (
	"io"
	"strconv"
	"strings"
)

var echoEscapes = map[byte]string{
	'a':  "\a",
	'b':  "\b",
	'e':  "\x1b",
	'f':  "\f",
	'n':  "\n",
	'r':  "\r",
	't':  "\t",
	'v':  "\v",
	'\\': "\\",
}

// unescape interprets the backslash escapes of echo -e in a single pass.
// stop is set when \c was seen, the output ends there.
func unescape(s string) (out string, stop bool) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}

		next := s[i+1]
		if repl, ok := echoEscapes[next]; ok {
			sb.WriteString(repl)
			i++
			continue
		}

		switch next {
		case 'c':
			return sb.String(), true
		case '0':
			// \0nnn, up to three octal digits
			digits := prefixLen(s[i+2:], 3, "01234567")
			n, _ := strconv.ParseUint("0"+s[i+2:i+2+digits], 8, 16)
			sb.WriteByte(byte(n))
			i += 1 + digits
		case 'x':
			// \xHH, one or two hex digits
			digits := prefixLen(s[i+2:], 2, "0123456789abcdefABCDEF")
			if digits == 0 {
				sb.WriteByte('\\')
				continue
			}
			n, _ := strconv.ParseUint(s[i+2:i+2+digits], 16, 8)
			sb.WriteByte(byte(n))
			i += 1 + digits
		default:
			sb.WriteByte('\\')
		}
	}
	return sb.String(), false
}

// prefixLen counts the leading bytes of s in set, at most max.
func prefixLen(s string, max int, set string) int {
	n := 0
	for n < len(s) && n < max && strings.IndexByte(set, s[n]) >= 0 {
		n++
	}
	return n
}

// Echo writes its arguments separated by spaces.
func Echo(env *Env) int {
	cmd := &SimpleCommand{
		Use:   "echo [-eEn] [ARG] ...",
		Short: "Display a line of text.",
	}

	opt := cmd.Flags()
	escaped := opt.Bool('e', "interpret backslash escapes")
	opt.Bool('E', "don't interpret backslash escapes (default)")
	noNewline := opt.Bool('n', "do not output the trailing newline")

	return cmd.RunE(env, func() error {
		line := strings.Join(opt.Args(), " ")
		stop := false
		if *escaped {
			line, stop = unescape(line)
		}
		if !*noNewline && !stop {
			line += "\n"
		}

		_, err := io.WriteString(env.Stdout(), line)
		return err
	})
}

var _ BuiltinFunc = Echo

func init() {
	mustAddBuiltin("echo", Echo)
}
