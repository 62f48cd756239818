package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd is catalogd's single command: there is no sub-command tree.
// This is a service entrypoint, not a CLI tool with multiple verbs.
var RootCmd = &cobra.Command{
	Use:   "catalogd",
	Short: "Iceberg REST Catalog service",
	Long: `catalogd constructs and runs the catalog's backend services:
the catalog store, the storage-credential vendors, the authorization
pipeline, the secret store, the task queue, and the observability stack.

Configuration is read from flags, ICECAT_-prefixed environment variables,
and an optional config file, in that order of precedence.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.catalogd.yaml)")
	RootCmd.PersistentFlags().Int("port", 8181, "HTTP server port")
	RootCmd.PersistentFlags().String("database-url", "", "Postgres connection string")
	RootCmd.PersistentFlags().String("redis-url", "", "Redis connection string")
	RootCmd.PersistentFlags().String("secrets-backend", "postgres", "secret store backend: postgres or kv2")

	viper.BindPFlag("server.port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("database.url", RootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("cache.redis_url", RootCmd.PersistentFlags().Lookup("redis-url"))
	viper.BindPFlag("secrets.backend", RootCmd.PersistentFlags().Lookup("secrets-backend"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".catalogd")
	}

	viper.SetEnvPrefix("ICECAT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// Execute runs RootCmd, exiting the process with a non-zero status on
// any cobra-level error (flag parsing, etc). runServer itself calls
// os.Exit directly on startup failures.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
