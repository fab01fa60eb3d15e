// Package cmd implements the aide command line.
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/aide/internal/config"
	"github.com/Iron-Ham/aide/internal/errors"
)

// NewRootCmd builds the aide command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aide",
		Short: "Drive a code-intelligence sidecar from the terminal",
		Long: `aide talks to a local code-intelligence sidecar: it streams agent
exchanges into a live plan view, searches code, resolves symbols, runs the
commands an agent proposes, and keeps the sidecar's index in step with
workspace edits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initConfig()
			return nil
		},
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/aide/config.yaml)")
	root.PersistentFlags().String("sidecar-url", "", "sidecar base URL")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("sidecar.url", root.PersistentFlags().Lookup("sidecar-url"))
	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newChatCmd(),
		newSearchCmd(),
		newSymbolCmd(),
		newRunCmd(),
		newHealthCmd(),
		newKeysCmd(),
		newPlanCmd(),
		newWatchCmd(),
		newConfigCmd(),
	)
	return root
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

// reportError prints err for the user. Critical errors that are not meant
// for users indicate a bug and say so; retryable ones suggest trying again.
func reportError(w io.Writer, err error) {
	if errors.GetSeverity(err) == errors.SeverityCritical && !errors.IsUserFacing(err) {
		fmt.Fprintf(w, "Internal error: %v\n", err)
		fmt.Fprintln(w, "This is a bug in aide or the sidecar; debug logs (logging.enabled) have details.")
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.IsRetryable(err) {
		fmt.Fprintln(w, "The failure looks temporary; retrying may help.")
	}
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	// AIDE_SIDECAR_URL overrides sidecar.url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
