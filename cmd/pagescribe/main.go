// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pagescribe CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the pagescribe CLI.
var rootCmd = &cobra.Command{
	Use:   "pagescribe",
	Short: "Convert documents to markdown with a vision model",
	Long: `pagescribe renders each page of a PDF (or a single image) and asks a
vision model to transcribe it as markdown. Pages are converted concurrently
and reassembled in order; optional bounding boxes locate each section on the
page image using OCR.

Converted documents can be stored in a SQLite database and searched with
full-text queries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).Warn("could not read .env")
		}
		level, err := logrus.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logrus.SetLevel(level)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pagescribe.yaml or ~/.config/pagescribe/pagescribe.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pagescribe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pagescribe"))
		}
	}

	viper.SetEnvPrefix("PAGESCRIBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
