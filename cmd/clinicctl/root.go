package main

import (
	"fmt"
	"os"

	"clinic/internal/config"
	"clinic/internal/database"
	"clinic/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	cfg        *config.Config
	logger     *zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Administrative tasks for the clinic booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultPath, "path to config.yaml")

	root.AddCommand(newUserCmd(a))
	root.AddCommand(newProviderCmd(a))
	root.AddCommand(newBackupCmd(a))
	root.AddCommand(newAppointmentsCmd(a))
	root.AddCommand(newReportCmd(a))
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// CLI пишет логи в stderr, stdout остаётся для вывода команд
	cfg.Logging.Output = "stderr"
	logger, _, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Component(logger, "clinicctl")
	return nil
}

func (a *app) openDB() (*database.DB, error) {
	return database.NewDB(a.cfg.Database.Path, a.logger)
}
