// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the cadastre-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/surveyth/cadastre-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the cadastre-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "cadastre-engine",
	Short: "Digitize parcel boundaries from scanned land deeds",
	Long: `cadastre-engine turns scanned land deed documents into GIS-ready parcel
geometries. Each pipeline stage is a subcommand: select crops the coordinate
table out of a scan, extract OCRs cropped tables into marker records, serve
opens the interactive verification editor, and export reprojects verified
records into GeoPackage layers.

Office metadata and datum defaults come from CONFIG.toml in the working
directory.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./CONFIG.toml or ~/.config/cadastre-engine/CONFIG.toml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("CONFIG")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cadastre-engine"))
		}
	}

	viper.SetEnvPrefix("CADASTRE_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// appConfig materializes the loaded configuration with defaults applied.
func appConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
