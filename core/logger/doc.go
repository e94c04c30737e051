// Package logger is a standardized event logging framework for the shell.
//
// Events are stored as newline delimited JSON objects encoded with protojson
// so logs can be read back and summarized with a Report.
package logger
