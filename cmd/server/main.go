package main // Entry point package

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
	"github.com/iliyamo/pcbang-kiosk/internal/database"
	"github.com/iliyamo/pcbang-kiosk/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "kioskd",
	Short: "PC-bang kiosk backend",
	Long: `kioskd serves the member, seat and catalog API used by the seat
terminals and the counter, and manages the database schema.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("kioskd: %v", err)
	}
}

// setup loads config and installs the process logger.
func setup() config.Config {
	cfg := config.Load()
	logging.Setup(os.Stdout, logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg
}

func dbOptions(cfg config.Config) database.Options {
	return database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
}
