package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

var (
	clearData  bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "spm-sp2d",
	Short: "SPM/SP2D disbursement workflow",
	Long:  `Regional treasury workflow for payment orders (SPM) and disbursement orders (SP2D).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// Check if we're running in Docker environment
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		// Load configuration from environment variables (Docker deployment)
		cfg, err := internal.LoadConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		initLogger(cfg)
		return cfg, nil
	}

	// Load configuration from file (development)
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	initLogger(&cfg)

	// only the log level is reloadable; everything else needs a restart
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) {
			return
		}
		lvl := v.GetString("observability.logging.level")
		if logger.SetLevel(lvl) {
			logger.LoggerWrapper().Info("log level reloaded", "level", lvl, "file", e.Name)
		}
	})
	v.WatchConfig()

	return &cfg, nil
}

func initLogger(cfg *internal.Config) {
	logger.Init(cfg.Server.Env)
	if cfg.Observability.Logging.Format != "" {
		logger.InitFormat(cfg.Observability.Logging.Format)
	}
	if cfg.Observability.Logging.Level != "" {
		logger.SetLevel(cfg.Observability.Logging.Level)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
