// Command pskrx demodulates PSK symbols and serves the constellation panel.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dudk/pskrx/config"
)

const (
	envPrefix     = "PSKRX"
	errorExitCode = 1
)

// app holds state shared by commands.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(errorExitCode)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:          "pskrx",
		Short:        "Live PSK demodulator with constellation display",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./pskrx.yaml if present)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		a.runCommand(),
		a.configCommand(),
		versionCommand(),
	)
	return root
}

// init reads defaults, config file and environment. Precedence from low to
// high: defaults, config file, environment, flags.
func (a *app) init() error {
	var defaults bytes.Buffer
	if err := config.DefaultConfig().Write(&defaults); err != nil {
		return err
	}
	a.v.SetConfigType("yaml")
	if err := a.v.ReadConfig(&defaults); err != nil {
		return fmt.Errorf("failed to read defaults: %w", err)
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("pskrx")
		a.v.AddConfigPath(".")
	}
	if err := a.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// load returns validated configuration.
func (a *app) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
