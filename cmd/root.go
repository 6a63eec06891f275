package cmd

import (
	"github.com/spf13/cobra"

	configcmd "github.com/aerodesk/aerodesk/cmd/config"
	"github.com/aerodesk/aerodesk/cmd/notify"
	"github.com/aerodesk/aerodesk/cmd/serve"
	"github.com/aerodesk/aerodesk/cmd/version"
	"github.com/aerodesk/aerodesk/internal/buildinfo"
	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	var (
		configFile string
		debug      bool
	)
	settings := &conf.Settings{}

	rootCmd := &cobra.Command{
		Use:           "aerodesk",
		Short:         "AeroDesk flight notification bus",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/aerodesk, /etc/aerodesk)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := version.Command(build)
	configCmd := configcmd.Command()

	rootCmd.AddCommand(
		serve.Command(settings, build),
		notify.Command(settings, build),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Commands that must work without a valid config skip loading it.
		if cmd == versionCmd || cmd.Parent() == configCmd {
			return nil
		}
		return initialize(settings, configFile, debug)
	}

	return rootCmd
}

// initialize loads settings and installs the global logger before any
// subcommand runs.
func initialize(settings *conf.Settings, configFile string, debug bool) error {
	v, err := conf.New()
	if err != nil {
		return err
	}
	loaded, err := conf.Load(v, configFile)
	if err != nil {
		return err
	}
	if debug {
		loaded.Debug = true
	}
	if loaded.Debug {
		loaded.Logging.Level = "debug"
		loaded.Logging.Console.Level = "debug"
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	logger.SetGlobal(central)
	return nil
}
