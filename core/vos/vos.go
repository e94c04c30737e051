// Package vos holds the stream and filesystem plumbing the shell runs
// commands on: stdio adapters, multi-stream descriptor slots and afero
// filesystem helpers.
package vos

import "io"

// VIO holds the three standard streams of a running command.
type VIO interface {
	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser
}

// MaxStreams is the number of descriptor slots a stage has. Slots 0, 1 and 2
// are stdin, stdout and stderr.
const MaxStreams = 10
