package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mailrefyne/internal/logger"
	"github.com/jmylchreest/mailrefyne/internal/report"
	"github.com/jmylchreest/mailrefyne/internal/store"
	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

var cleanCmd = &cobra.Command{
	Use:   "clean SRC DEST",
	Short: "Clean every message of a raw table into a cleaned table",
	Long: `Clean reads the raw table of SRC, cleans each payload and writes
message_id, headers, body_raw, body_clean and cleaning_stats to DEST.
SRC and DEST may be the same database if the table names differ.

Levels:
  minimal     convert markup and normalize whitespace
  standard    also remove signatures, legal footers and repeated text
  aggressive  also strip quoted replies

With --build-signature-db the whole corpus is scanned first and trailing
text seen in at least --threshold messages is removed from every message.
A set saved with --save-fingerprints can be reused with --fingerprints.

Examples:
  mailrefyne clean mail.db clean.db
  mailrefyne clean mail.db mail.db --dest-table cleaned --level aggressive
  mailrefyne clean mail.db clean.db --build-signature-db --save-fingerprints fp.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	addCleaningFlags(cleanCmd)
	flags := cleanCmd.Flags()
	flags.StringP("table", "t", store.DefaultTable, "raw table to read")
	flags.String("dest-table", "", "cleaned table to write (default: same as --table)")
	flags.Bool("build-signature-db", false, "learn repeated trailing text across the corpus before cleaning")
	flags.String("fingerprints", "", "load a saved fingerprint set")
	flags.String("save-fingerprints", "", "save the learned fingerprint set to a file")
	flags.Bool("require-fingerprints", false, "fail instead of cleaning without fingerprints")
	flags.Int("threshold", 0, "corpus count at which repeated text is removed")
	flags.Bool("scale-threshold", false, "raise the threshold to 1% of the corpus when larger")
	flags.IntP("workers", "w", 0, "concurrent cleaners (default: number of CPUs)")
	flags.Int("batch-size", mailclean.DefaultBatchSize, "messages per batch")
	flags.String("tokenizer", store.DefaultTokenizer, "full-text tokenizer")
	flags.Bool("no-index", false, "skip rebuilding the full-text index")
}

func runClean(cmd *cobra.Command, args []string) error {
	srcPath, destPath := args[0], args[1]
	flags := cmd.Flags()
	tableName, _ := flags.GetString("table")
	destTable, _ := flags.GetString("dest-table")
	buildFingerprints, _ := flags.GetBool("build-signature-db")
	loadPath, _ := flags.GetString("fingerprints")
	savePath, _ := flags.GetString("save-fingerprints")
	requireFingerprints, _ := flags.GetBool("require-fingerprints")
	workers, _ := flags.GetInt("workers")
	batchSize, _ := flags.GetInt("batch-size")
	tokenizer, _ := flags.GetString("tokenizer")
	noIndex, _ := flags.GetBool("no-index")

	if destTable == "" {
		destTable = tableName
	}
	sameDB := samePath(srcPath, destPath)
	if sameDB && destTable == tableName {
		return fmt.Errorf("source and destination are both %s in %s: set --dest-table", tableName, srcPath)
	}
	if savePath != "" && !buildFingerprints {
		return errors.New("--save-fingerprints needs --build-signature-db")
	}
	if loadPath != "" && buildFingerprints {
		return errors.New("--fingerprints cannot be combined with --build-signature-db")
	}

	cfg, err := cleaningConfig(cmd)
	if err != nil {
		return err
	}

	opts := mailclean.PipelineOptions{
		Workers:             workers,
		BatchSize:           batchSize,
		BuildFingerprints:   buildFingerprints,
		RequireFingerprints: requireFingerprints,
	}
	if loadPath != "" {
		set, err := loadFingerprints(loadPath, cfg.Fingerprint)
		if err != nil {
			return err
		}
		opts.Fingerprints = set
		logInfo("Loaded %d fingerprints from %s", set.Len(), loadPath)
	}

	var saveErr error
	if savePath != "" {
		opts.OnFingerprints = func(set *mailclean.FingerprintSet) {
			saveErr = saveFingerprints(savePath, set)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srcDB, err := openStore(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = srcDB.Close() }()

	destDB := srcDB
	if !sameDB {
		destDB, err = openStore(destPath)
		if err != nil {
			return err
		}
		defer func() { _ = destDB.Close() }()
	}

	raw, err := srcDB.Raw(tableName)
	if err != nil {
		return err
	}
	cleaned, err := destDB.Cleaned(destTable)
	if err != nil {
		return err
	}
	if err := cleaned.Migrate(ctx); err != nil {
		return err
	}

	total, err := raw.Count(ctx)
	if err != nil {
		if errors.Is(err, store.ErrTableMissing) {
			return fmt.Errorf("table %s not found in %s: %w", tableName, srcPath, err)
		}
		return err
	}

	bar := newProgress(total, "cleaning")
	opts.OnProgress = func(done, _ int) {
		_ = bar.Set(done)
	}

	pipeline, err := mailclean.NewPipeline(cfg, opts)
	if err != nil {
		return err
	}

	logInfo("Cleaning %d messages from %s.%s at level %s", total, srcPath, tableName, cfg.Level)
	summary, err := pipeline.Run(ctx, raw, cleaned)
	_ = bar.Finish()
	if err != nil {
		return err
	}
	if saveErr != nil {
		return fmt.Errorf("saving fingerprints: %w", saveErr)
	}
	if savePath != "" {
		logInfo("Saved fingerprints to %s", savePath)
	}

	if !noIndex {
		logInfo("Rebuilding full-text index (%s)", tokenizer)
		if err := cleaned.RebuildIndex(ctx, tokenizer); err != nil {
			return err
		}
	}

	if !isQuiet() {
		report.WriteSummary(os.Stderr, summary)
	}
	logger.Debug("cleaned table ready", "db", destPath, "table", destTable)
	return nil
}

func loadFingerprints(path string, cfg mailclean.FingerprintConfig) (*mailclean.FingerprintSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fingerprints: %w", err)
	}
	defer func() { _ = f.Close() }()
	return mailclean.LoadFingerprints(f, cfg)
}

func saveFingerprints(path string, set *mailclean.FingerprintSet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mailclean.SaveFingerprints(f, set); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// samePath reports whether a and b name the same database file.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
