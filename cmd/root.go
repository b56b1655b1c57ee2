package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clustream",
	Short: "Clustream - online micro-cluster maintenance and coreset-tree reduction",
	Long: `Clustream maintains a bounded pool of CluStream micro-clusters over an
unbounded point stream and reduces it on demand to k final clusters with a
randomized coreset-tree k-means++ pass.

Features:
  - Online bootstrap/absorb/forget/merge micro-cluster maintenance
  - Coreset-tree k-means++ offline reduction
  - Pluggable sources (JSONL, in-memory) and sinks (stdout, Pinecone, Qdrant)

Environment Variables:
  PINECONE_API_KEY    For the Pinecone sink
  QDRANT_URL          Bound to the qdrant_url config key; the Qdrant sink
                      takes its host from --sink-host, not from this`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Disable the default cobra completion command to avoid duplicate name conflict.
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is clustream.yaml in $HOME or the current directory)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
// Config loading priority: CLI flags > environment variables > config file > defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("clustream")
	}

	// Read environment variables with CLUSTREAM_ prefix
	viper.SetEnvPrefix("CLUSTREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Also check for PINECONE_API_KEY without prefix
	_ = viper.BindEnv("pinecone_api_key", "PINECONE_API_KEY")
	_ = viper.BindEnv("qdrant_url", "QDRANT_URL")

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
