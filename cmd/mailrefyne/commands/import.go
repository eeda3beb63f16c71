package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/mailrefyne/internal/logger"
	"github.com/jmylchreest/mailrefyne/internal/mbox"
	"github.com/jmylchreest/mailrefyne/internal/store"
	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

var importCmd = &cobra.Command{
	Use:   "import DB MBOX",
	Short: "Import an mbox archive into a SQLite database",
	Long: `Import reads every message of an mbox file and stores it in a raw
table keyed by Message-ID. Header names are lower-cased, encoded words are
decoded and every text part is kept. Messages without a Message-ID get an
id derived from their content. Importing the same archive twice replaces
rows instead of duplicating them.

After the import a full-text index over subject and payload is rebuilt.

Examples:
  mailrefyne import mail.db archive.mbox
  mailrefyne import mail.db archive.mbox --table lkml --tokenizer unicode61`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	flags := importCmd.Flags()
	flags.StringP("table", "t", store.DefaultTable, "raw table name")
	flags.String("tokenizer", store.DefaultTokenizer, "full-text tokenizer")
	flags.Int("batch-size", mailclean.DefaultBatchSize, "messages per write")
	flags.Bool("no-index", false, "skip rebuilding the full-text index")
}

func runImport(cmd *cobra.Command, args []string) error {
	dbPath, mboxPath := args[0], args[1]
	tableName, _ := cmd.Flags().GetString("table")
	tokenizer, _ := cmd.Flags().GetString("tokenizer")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	noIndex, _ := cmd.Flags().GetBool("no-index")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	total, err := mbox.Count(mboxPath)
	if err != nil {
		return err
	}

	reader, err := mbox.Open(mboxPath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	db, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	raw, err := db.Raw(tableName)
	if err != nil {
		return err
	}
	if err := raw.Migrate(ctx); err != nil {
		return err
	}

	logInfo("Importing %s messages from %s into %s", humanize.Comma(int64(total)), mboxPath, tableName)
	bar := newProgress(total, "importing")

	imported, err := reader.Each(ctx, batchSize, func(batch []mailclean.RawMessage) error {
		if err := raw.UpsertRaw(ctx, batch); err != nil {
			return err
		}
		_ = bar.Add(len(batch))
		return nil
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("import stopped after %d messages: %w", imported, err)
	}

	if !noIndex {
		logInfo("Rebuilding full-text index (%s)", tokenizer)
		if err := raw.RebuildIndex(ctx, tokenizer); err != nil {
			return err
		}
	}

	stored, err := raw.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("import complete",
		"mbox", mboxPath,
		"table", tableName,
		"imported", imported,
		"skipped", reader.Skipped(),
		"rows", stored,
	)
	logInfo("Imported %s messages (%s skipped, %s rows in %s)",
		humanize.Comma(int64(imported)), humanize.Comma(int64(reader.Skipped())),
		humanize.Comma(int64(stored)), tableName)
	return nil
}
