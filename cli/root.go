package cli

import (
	"fmt"

	"github.com/repcoach/repcoach/cli/cmd/config"
	"github.com/repcoach/repcoach/cli/cmd/migrate"
	"github.com/repcoach/repcoach/cli/cmd/serve"
	"github.com/repcoach/repcoach/engine/infra/monitoring"
	"github.com/repcoach/repcoach/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "repcoach.yaml"
	defaultEnvFile    = ".env"
)

func RootCmd() *cobra.Command {
	version, commit, _ := monitoring.BuildInfo()
	root := &cobra.Command{
		Use:           "repcoach",
		Short:         "RepCoach AI workout coaching service",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	root.PersistentFlags().String("config", defaultConfigFile, "path to the YAML configuration file")
	root.PersistentFlags().String("env-file", defaultEnvFile, "path to a .env file; empty to skip")
	addOverrideFlags(root)
	logger.AddFlags(root)

	root.AddCommand(
		serve.NewServeCommand(),
		migrate.NewMigrateCommand(),
		config.NewConfigCommand(),
	)
	return root
}
