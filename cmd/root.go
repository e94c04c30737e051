package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/spf13/cobra"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// openRuntime builds a runtime from configuration and sends the application
// log to the configuration directory. The returned function releases both.
func openRuntime(configuration *config.Configuration) (*core.Runtime, func(), error) {
	appLog, err := configuration.OpenAppLog()
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(appLog)

	runtime, err := core.NewRuntime(configuration)
	if err != nil {
		appLog.Close()
		return nil, nil, err
	}

	return runtime, func() {
		if err := runtime.Close(); err != nil {
			log.Printf("closing runtime: %v", err)
		}
		appLog.Close()
	}, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipesh",
	Short: "A pipeline shell over structured values",
	Long: `A command shell whose pipelines carry values as well as bytes, with
job control, a virtual filesystem and an execution event log.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
