package cmd

import (
	"github.com/bnema/askdb/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Execute() error {
	rootCmd, closeApp := newRootCmd()
	err := rootCmd.Execute()
	if closeErr := closeApp(); err == nil {
		err = closeErr
	}
	return err
}

// newRootCmd returns the command tree and a func releasing whatever the
// commands opened, such as the record store lock.
func newRootCmd() (*cobra.Command, func() error) {
	state := &cliState{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "askdb",
		Short:         "askdb: ask questions about your local records",
		Long:          "askdb lets a local or remote language model answer questions about your record store by calling a fixed set of tools. Large results are kept in a local memory cache and every write is preceded by a backup.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&state.configFile, "config", "", "config file (default ~/.askdb/config.toml)")
	flags.String("backend-url", "", "inference backend base URL")
	flags.String("model", "", "model name")
	flags.String("dialect", "", "backend wire dialect: ollama or openai")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	for key, name := range map[string]string{
		config.KeyBackendURL:     "backend-url",
		config.KeyBackendModel:   "model",
		config.KeyBackendDialect: "dialect",
		config.KeyLogLevel:       "log-level",
	} {
		_ = state.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newChatCmd(state),
		newAskCmd(state),
		newMemoryCmd(state),
		newBackupCmd(state),
		newRecordsCmd(state),
		newSessionsCmd(state),
		newHealthCmd(state),
	)

	return rootCmd, state.close
}
