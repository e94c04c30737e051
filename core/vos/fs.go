package vos

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// VFS is the filesystem sessions resolve paths against.
type VFS = afero.Fs

const (
	// FsOS uses the host filesystem.
	FsOS = "os"
	// FsMemory uses an empty in-memory filesystem, optionally seeded from an
	// image.
	FsMemory = "memory"
	// FsOverlay reads from the host and keeps every write in memory.
	FsOverlay = "overlay"
)

// FsOptions describes the filesystem a session sees.
type FsOptions struct {
	// Kind is one of FsOS, FsMemory or FsOverlay, empty means FsOS.
	Kind string
	// Root, if set, confines host access to the directory.
	Root string
	// Image is a .tar.gz extracted into a memory filesystem.
	Image string
	// ReadOnly rejects every write.
	ReadOnly bool
}

// NewFs builds a filesystem from the options.
func NewFs(opts FsOptions) (VFS, error) {
	var host VFS = afero.NewOsFs()
	if opts.Root != "" {
		host = afero.NewBasePathFs(host, opts.Root)
	}

	var out VFS
	switch opts.Kind {
	case "", FsOS:
		out = host
	case FsOverlay:
		out = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(host), afero.NewMemMapFs())
	case FsMemory:
		out = afero.NewMemMapFs()
		if opts.Image != "" {
			if err := extractImage(host, opts.Image, out); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown filesystem kind %q", opts.Kind)
	}

	if opts.ReadOnly {
		out = afero.NewReadOnlyFs(out)
	}
	return out, nil
}

func extractImage(src VFS, image string, dst VFS) error {
	fd, err := src.Open(image)
	if err != nil {
		return err
	}
	defer fd.Close()

	gr, err := gzip.NewReader(fd)
	if err != nil {
		return fmt.Errorf("reading image %q: %w", image, err)
	}
	defer gr.Close()

	return ExtractTarToVFS(dst, tar.NewReader(gr))
}

// ExtractTarToVFS writes every entry of the archive into vfs, rooted at /.
func ExtractTarToVFS(vfs VFS, t *tar.Reader) error {
	for {
		hdr, err := t.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := (func() error {
			name := path.Clean("/" + hdr.Name)

			// Make parents
			if err := vfs.MkdirAll(path.Dir(name), 0777); err != nil {
				return err
			}

			mode := hdr.FileInfo().Mode()
			switch {
			case mode.IsDir():
				err := vfs.Mkdir(name, mode.Perm())
				switch {
				case os.IsExist(err):
					// Do nothing
				case err != nil:
					return err
				}
			case mode.IsRegular():
				fd, err := vfs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode.Perm())
				if err != nil {
					return err
				}
				// Don't defer the close because it'll update the modification time.
				if _, err := io.CopyN(fd, t, hdr.Size); err != nil {
					fd.Close()
					return err
				}
				fd.Close()
			default:
				// Links and devices have no meaning in the shell's filesystem.
				return nil
			}

			return vfs.Chtimes(name, hdr.ModTime, hdr.ModTime)
		}()); err != nil {
			return fmt.Errorf("extracting %q: %v", hdr.Name, err)
		}
	}
}

// Resolve returns name as an absolute path, relative names are joined to dir.
func Resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	if dir == "" {
		dir = string(filepath.Separator)
	}
	return filepath.Join(dir, name)
}

// IsDir reports whether name exists in vfs and is a directory.
func IsDir(vfs VFS, name string) (bool, error) {
	fi, err := vfs.Stat(name)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// OpenFlags maps redirection modes to open flags.
func OpenFlags(read, write, appendMode bool) int {
	var flags int
	switch {
	case read && write:
		flags = os.O_RDWR | os.O_CREATE
	case write:
		flags = os.O_WRONLY | os.O_CREATE
	default:
		flags = os.O_RDONLY
	}
	switch {
	case write && appendMode:
		flags |= os.O_APPEND
	case write && !read:
		flags |= os.O_TRUNC
	}
	return flags
}
