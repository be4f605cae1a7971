// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mk",
	Short: "mk manages a versioned content repository",
	Long: `mk manages a versioned content repository: a tree of nodes and properties,
with a history of revisions.

Changes are committed as diffs, e.g.

  mk commit '+"a":{"x":1}'

Nodes are content-addressed: unchanged subtrees are shared between revisions.
`,
	SilenceUsage: true,
}

var config *Config

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addRootFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults(viper.GetViper())
	if os.Getenv("MK_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("MK_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.mk")
		viper.AddConfigPath("/etc/mk")
		viper.SetConfigName("mk")
	}

	viper.SetEnvPrefix("MK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}

	var err error
	config, err = newConfig(viper.GetViper())
	if err != nil {
		wrapFatalln("invalid configuration", err)
	}
}
