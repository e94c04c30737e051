package commands

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	fcolor "github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/spf13/afero"
)

// lsListing is the output for one operand. Files given as operands share a
// single listing with no directory.
type lsListing struct {
	dir     string
	entries []os.FileInfo
}

type lsOptions struct {
	all        bool
	dirsAsFile bool
	long       bool
	onePerLine bool
	human      bool
	reverse    bool
	byTime     bool
	bySize     bool
	width      int
	color      *ColorPrinter
}

func (o *lsOptions) sort(entries []os.FileInfo) {
	less := func(a, b os.FileInfo) bool {
		switch {
		case o.byTime && !a.ModTime().Equal(b.ModTime()):
			return a.ModTime().After(b.ModTime())
		case o.bySize && a.Size() != b.Size():
			return a.Size() > b.Size()
		default:
			return a.Name() < b.Name()
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if o.reverse {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func (o *lsOptions) size(bytes int64) string {
	if o.human {
		return BytesToHuman(bytes)
	}
	return strconv.FormatInt(bytes, 10)
}

func (o *lsOptions) colorName(info os.FileInfo) string {
	return o.color.Sprintf(Dircolor(info), "%s", info.Name())
}

// Ls implements the UNIX ls command.
func Ls(env *Env) int {
	screenWidth := 80
	if cols, err := strconv.Atoi(env.Getenv("COLUMNS")); err == nil && cols >= 0 {
		screenWidth = cols
	}

	help := false
	cmd := &SimpleCommand{
		Use:      "ls [-1AadhlrSt] [-w COLS] [--value] [FILE]...",
		Short:    "List information about the FILEs (the current directory by default).",
		ShowHelp: &help,
	}
	flags := cmd.Flags()
	flags.FlagLong(&help, "help", '?', "show help and exit")

	var color ColorPrinter
	color.Init(flags, env)
	o := &lsOptions{color: &color}
	flags.FlagLong(&o.all, "all", 'a', "don't ignore entries starting with .")
	flags.FlagLong(&o.all, "almost-all", 'A', "same as -a, . and .. are never listed")
	flags.FlagLong(&o.dirsAsFile, "directory", 'd', "list directories themselves, not their contents")
	flags.Flag(&o.long, 'l', "use a long listing format")
	flags.Flag(&o.onePerLine, '1', "list one file per line")
	flags.FlagLong(&o.human, "human-readable", 'h', "print human readable sizes")
	flags.FlagLong(&o.reverse, "reverse", 'r', "reverse the sort order")
	flags.Flag(&o.byTime, 't', "sort by modification time, newest first")
	flags.Flag(&o.bySize, 'S', "sort by file size, largest first")
	o.width = screenWidth
	flags.FlagLong(&o.width, "width", 'w', "set the column width, 0 is infinite")
	asValue := flags.BoolLong("value", 0, "return the entries as a list of maps instead of writing them")

	return cmd.Run(env, func() int {
		if o.width == 0 {
			o.width = math.MaxInt32
		}

		operands := flags.Args()
		if len(operands) == 0 {
			operands = []string{"."}
		}
		listings, exitCode := collectListings(env, cmd, o, operands)

		if *asValue {
			env.SetResult(lsValue(listings))
			return exitCode
		}

		out := env.Stdout()
		showHeaders := len(operands) > 1
		for i, listing := range listings {
			if showHeaders && listing.dir != "" {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s:\n", listing.dir)
			}

			var err error
			switch {
			case o.long:
				err = writeLongListing(env, o, listing)
			case o.onePerLine:
				for _, info := range listing.entries {
					if _, err = fmt.Fprintln(out, o.colorName(info)); err != nil {
						break
					}
				}
			default:
				err = writeColumns(out, o, listing.entries)
			}
			if err != nil {
				return streamFailure(env, err)
			}
		}
		return exitCode
	})
}

// collectListings stats every operand. File operands come first in one
// listing, followed by one listing per directory, each group sorted by name.
func collectListings(env *Env, cmd *SimpleCommand, o *lsOptions, operands []string) ([]lsListing, int) {
	sort.Strings(operands)

	exitCode := 0
	files := lsListing{}
	var dirs []lsListing
	for _, name := range operands {
		resolved := env.Resolve(name)
		info, err := env.Fs().Stat(resolved)
		if err != nil {
			cmd.LogProgramError(env, fmt.Errorf("%s: %v", name, err))
			exitCode = 1
			continue
		}

		if !info.IsDir() || o.dirsAsFile {
			files.entries = append(files.entries, renamedInfo{info, name})
			continue
		}

		children, err := afero.ReadDir(env.Fs(), resolved)
		if err != nil {
			cmd.LogProgramError(env, fmt.Errorf("%s: %v", name, err))
			exitCode = 1
			continue
		}
		listing := lsListing{dir: name}
		for _, child := range children {
			if o.all || !strings.HasPrefix(child.Name(), ".") {
				listing.entries = append(listing.entries, child)
			}
		}
		o.sort(listing.entries)
		dirs = append(dirs, listing)
	}

	if len(files.entries) == 0 {
		return dirs, exitCode
	}
	o.sort(files.entries)
	return append([]lsListing{files}, dirs...), exitCode
}

// renamedInfo reports an operand under the name it was given.
type renamedInfo struct {
	os.FileInfo
	name string
}

func (r renamedInfo) Name() string {
	return r.name
}

func lsValue(listings []lsListing) []interface{} {
	out := []interface{}{}
	for _, listing := range listings {
		for _, info := range listing.entries {
			out = append(out, map[string]interface{}{
				"name":     info.Name(),
				"path":     path.Join(listing.dir, info.Name()),
				"size":     info.Size(),
				"mode":     info.Mode().String(),
				"dir":      info.IsDir(),
				"modified": info.ModTime().UTC().Format(time.RFC3339),
			})
		}
	}
	return out
}

func writeLongListing(env *Env, o *lsOptions, listing lsListing) error {
	uid2name := UidResolver(env)
	gid2name := GidResolver(env)
	thisYear := time.Now().Year()

	out := env.Stdout()
	if listing.dir != "" {
		var total int64
		for _, info := range listing.entries {
			total += info.Size()
		}
		fmt.Fprintf(out, "total %d\n", total)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	for _, info := range listing.entries {
		links := 1
		if info.IsDir() {
			links = 2
		}

		layout := "Jan _2 2006"
		if info.ModTime().Year() >= thisYear {
			layout = "Jan _2 15:04"
		}

		uid, gid := getUIDGID(info)
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			info.Mode(),
			links,
			uid2name(uid),
			gid2name(gid),
			o.size(info.Size()),
			info.ModTime().Format(layout),
			o.colorName(info))
	}
	return tw.Flush()
}

// writeColumns fills columns top to bottom, then left to right.
func writeColumns(out io.Writer, o *lsOptions, entries []os.FileInfo) error {
	if len(entries) == 0 {
		return nil
	}

	widths := columnize(entries, o.width)
	rows := (len(entries) + len(widths) - 1) / len(widths)

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for col, width := range widths {
			index := col*rows + row
			if index >= len(entries) {
				continue
			}
			if col > 0 {
				sb.WriteString("  ")
			}
			info := entries[index]
			sb.WriteString(o.colorName(info))

			lastInRow := col == len(widths)-1 || index+rows >= len(entries)
			if pad := width - len(info.Name()); pad > 0 && !lastInRow {
				sb.WriteString(strings.Repeat(" ", pad))
			}
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(out, sb.String())
	return err
}

// streamFailure hands a failed write to the shell.
func streamFailure(env *Env, err error) int {
	if shell.IsInterruption(err) {
		env.Fail(err)
	} else {
		fmt.Fprintf(env.Stderr(), "%s: %v\n", env.Args()[0], err)
	}
	return 1
}

var archiveExts = map[string]bool{
	".tar": true, ".tgz": true, ".zip": true, ".gz": true,
	".bz2": true, ".bz": true, ".tbz": true, ".deb": true,
	".rpm": true, ".jar": true, ".war": true, ".rar": true,
}

var colorSpecial = fcolor.New(fcolor.FgYellow, fcolor.BgBlack, fcolor.Bold)

// Dircolor picks the color ls shows a file in.
// https://askubuntu.com/a/884513
func Dircolor(info os.FileInfo) *fcolor.Color {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return ColorBoldBlue
	case mode&fs.ModeSymlink != 0:
		return ColorBoldCyan
	case mode&(fs.ModeDevice|fs.ModeNamedPipe|fs.ModeSocket|fs.ModeCharDevice) != 0:
		return colorSpecial
	case mode.Perm()&0111 != 0:
		return ColorBoldGreen
	case archiveExts[path.Ext(info.Name())]:
		return ColorBoldRed
	default:
		return fcolor.New(fcolor.FgHiWhite)
	}
}

// columnize finds the most columns that fit in screenWidth and returns the
// width of each.
func columnize(entries []os.FileInfo, screenWidth int) []int {
	const padding = 2

	if len(entries) == 0 {
		return []int{0}
	}

	columns := screenWidth / (1 + padding)
	if columns > len(entries) {
		columns = len(entries)
	}

	var widths []int
	for ; columns >= 1; columns-- {
		rows := (len(entries) + columns - 1) / columns
		widths = make([]int, columns)
		total := (columns - 1) * padding
		for i, info := range entries {
			col := i / rows
			if n := len(info.Name()); n > widths[col] {
				total += n - widths[col]
				widths[col] = n
			}
		}
		if total <= screenWidth {
			return widths
		}
	}
	return widths
}

func getUIDGID(info os.FileInfo) (uid, gid int) {
	switch v := info.Sys().(type) {
	case *syscall.Stat_t:
		return int(v.Uid), int(v.Gid)
	case *tar.Header:
		return v.Uid, v.Gid
	case tar.Header:
		return v.Uid, v.Gid
	default:
		return 0, 0
	}
}

var _ BuiltinFunc = Ls

func init() {
	mustAddBuiltin("ls", Ls)
}
