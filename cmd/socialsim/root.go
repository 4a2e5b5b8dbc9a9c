package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/quailyquaily/socialsim/internal/outputfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix = "SOCIALSIM"
)

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", outputfmt.FormatErrorForDisplay(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "socialsim",
		Short:         "Simulated social network of LLM personas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))

	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error (defaults to info; debug if --trace).")
	cmd.PersistentFlags().String("log-format", "text", "Logging format: text|json.")
	cmd.PersistentFlags().Bool("log-add-source", false, "Include source file:line in logs.")
	cmd.PersistentFlags().Bool("trace", false, "Print extra debug info to stderr.")
	cmd.PersistentFlags().String("personas", "", "Roster file, JSON or YAML (defaults to personas.path).")
	cmd.PersistentFlags().String("store", "", "Post store driver: file|sqlite|memory.")
	cmd.PersistentFlags().String("llm-endpoint", "", "Ollama endpoint.")

	_ = viper.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.add_source", cmd.PersistentFlags().Lookup("log-add-source"))
	_ = viper.BindPFlag("trace", cmd.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("personas.path", cmd.PersistentFlags().Lookup("personas"))
	_ = viper.BindPFlag("store.driver", cmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("llm.endpoint", cmd.PersistentFlags().Lookup("llm-endpoint"))

	cmd.AddCommand(newInteractCmd())
	cmd.AddCommand(newOwnerRepliesCmd())
	cmd.AddCommand(newPostCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newConverseCmd())
	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newPredictCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func initConfig() {
	initViperDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile := strings.TrimSpace(viper.GetString("config"))
	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
	}
}
