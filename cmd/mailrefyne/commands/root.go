// Package commands implements the CLI commands for mailrefyne.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/mailrefyne/internal/logger"
	"github.com/jmylchreest/mailrefyne/internal/store"
	"github.com/jmylchreest/mailrefyne/internal/version"
	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

var rootCmd = &cobra.Command{
	Use:   "mailrefyne",
	Short: "Clean email archives into compact, LLM-ready text",
	Long: `Mailrefyne imports mbox archives into SQLite and cleans every message
into compact text: markup becomes markdown, signatures, legal footers and
quoted history are removed, and text repeated across the corpus is dropped.

Examples:
  # Import an archive
  mailrefyne import mail.db archive.mbox

  # Clean it at the standard level, learning repeated footers first
  mailrefyne clean mail.db mail.db --table messages --build-signature-db

  # Try every level on one message
  mailrefyne preview message.html --compare

  # Search the cleaned text
  mailrefyne search mail.db "quarterly report"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.mailrefyne.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".mailrefyne")
		viper.SetConfigType("yaml")
	}

	// MAILREFYNE_CLEANING_LEVEL sets cleaning.level and so on.
	viper.SetEnvPrefix("MAILREFYNE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && viper.GetString("config") != "" {
			logError("reading config: %v", err)
		}
	}
}

func initLogger() {
	err := logger.Init(logger.Options{
		Level: viper.GetString("log.level"),
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log.json"),
	})
	if err != nil {
		logError("%v", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

// cleaningConfig builds the cleaning configuration for a command: the
// defaults of the selected level, then the "cleaning" section of the config
// file, then any cleaning flags the command set.
func cleaningConfig(cmd *cobra.Command) (*mailclean.Config, error) {
	levelName := viper.GetString("cleaning.level")
	if cmd.Flags().Changed("level") {
		levelName, _ = cmd.Flags().GetString("level")
	}
	if levelName == "" {
		levelName = string(mailclean.LevelStandard)
	}
	level, err := mailclean.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	cfg := mailclean.ConfigForLevel(level)
	if viper.IsSet("cleaning") {
		if err := viper.UnmarshalKey("cleaning", cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", mailclean.ErrInvalidConfig, err)
		}
	}
	cfg.Level = level

	flags := cmd.Flags()
	if flags.Lookup("engine") != nil && flags.Changed("engine") {
		engine, _ := flags.GetString("engine")
		cfg.Converter.Engine = mailclean.Engine(engine)
	}
	if flags.Lookup("drop-images") != nil && flags.Changed("drop-images") {
		cfg.Converter.DropImages, _ = flags.GetBool("drop-images")
	}
	if flags.Lookup("strip-links") != nil && flags.Changed("strip-links") {
		cfg.Converter.StripLinks, _ = flags.GetBool("strip-links")
	}
	if flags.Lookup("threshold") != nil && flags.Changed("threshold") {
		cfg.Fingerprint.Threshold, _ = flags.GetInt("threshold")
	}
	if flags.Lookup("scale-threshold") != nil && flags.Changed("scale-threshold") {
		cfg.Fingerprint.ScaleWithCorpus, _ = flags.GetBool("scale-threshold")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addCleaningFlags registers the flags read by cleaningConfig.
func addCleaningFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("level", "l", string(mailclean.LevelStandard), "cleaning level (minimal, standard, aggressive)")
	flags.String("engine", string(mailclean.EngineBuiltin), "markup engine (builtin, html-to-markdown)")
	flags.Bool("drop-images", false, "drop image placeholders")
	flags.Bool("strip-links", false, "keep link labels and drop their targets")
}

// openStore opens the database at path with the global debug setting.
func openStore(path string) (*store.DB, error) {
	return store.Open(path, store.Options{Debug: viper.GetBool("debug")})
}

// newProgress returns a progress bar over total items, silent in quiet mode.
func newProgress(total int, description string) *progressbar.ProgressBar {
	if isQuiet() {
		return progressbar.DefaultSilent(int64(total), description)
	}
	return progressbar.Default(int64(total), description)
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !isQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func isQuiet() bool {
	return viper.GetBool("quiet")
}
