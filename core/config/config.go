package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
	AppLogName        = "app.log"
)

type Configuration struct {
	configurationDir string

	ShellName  string `json:"shell_name" validate:"required"`
	Prompt     string `json:"prompt"`
	Motd       string `json:"motd"`
	FormatPipe bool   `json:"format_pipe"`
	ScopePath  string `json:"scope_path"`
	Color      string `json:"color" validate:"omitempty,oneof=auto always never"`

	HistoryFile string `json:"history_file"`
	EventLog    string `json:"event_log"`
	Transcripts string `json:"transcripts"`

	Env       []string               `json:"env" validate:"dive,contains=="`
	Constants map[string]interface{} `json:"constants" validate:"dive,keys,required,endkeys"`
	Startup   []string               `json:"startup"`

	Filesystem Filesystem `json:"filesystem"`
}

// Filesystem selects the filesystem sessions see.
type Filesystem struct {
	Kind     string `json:"kind" validate:"omitempty,oneof=os memory overlay"`
	Root     string `json:"root"`
	Image    string `json:"image" validate:"required_if=Kind memory"`
	ReadOnly bool   `json:"read_only"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Dir is the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

func (c *Configuration) fs() afero.Fs {
	return afero.NewBasePathFs(afero.NewOsFs(), c.configurationDir)
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// OpenEventLog opens the execution event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// OpenTranscript creates a new recording in the transcript directory.
func (c *Configuration) OpenTranscript(name string) (afero.File, error) {
	fs := c.fs()
	if err := fs.MkdirAll(c.Transcripts, 0700); err != nil {
		return nil, err
	}
	return fs.OpenFile(filepath.Join(c.Transcripts, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
}

// TranscriptPath is the path of a recording on the host.
func (c *Configuration) TranscriptPath(name string) string {
	return c.resolve(filepath.Join(c.Transcripts, name))
}

// HistoryPath is the absolute path of the interactive history file, empty if
// history is disabled.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" {
		return ""
	}
	return c.resolve(c.HistoryFile)
}

// FsOptions converts the filesystem section, relative image paths are
// resolved against the configuration directory.
func (c *Configuration) FsOptions() vos.FsOptions {
	opts := vos.FsOptions{
		Kind:     c.Filesystem.Kind,
		Root:     c.Filesystem.Root,
		ReadOnly: c.Filesystem.ReadOnly,
	}
	if c.Filesystem.Image != "" {
		opts.Image = c.resolve(c.Filesystem.Image)
		if opts.Root != "" {
			// Images are opened through the confined host filesystem.
			opts.Image = c.Filesystem.Image
		}
	}
	return opts
}

func (c *Configuration) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	dir, err := filepath.Abs(c.configurationDir)
	if err != nil {
		dir = c.configurationDir
	}
	return filepath.Join(dir, name)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built in configuration rooted at dir.
func Default(dir string) *Configuration {
	out := defaultConfig()
	out.configurationDir = dir
	return out
}
