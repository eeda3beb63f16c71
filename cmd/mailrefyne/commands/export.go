package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mailrefyne/internal/output"
	"github.com/jmylchreest/mailrefyne/internal/store"
	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

var exportCmd = &cobra.Command{
	Use:   "export DB",
	Short: "Export cleaned messages as JSON, JSONL or YAML",
	Long: `Export writes the rows of a cleaned table. By default every column is
written; --body-only keeps the id, subject, sender, date and cleaned body,
which is the usual shape for feeding a model.

Examples:
  mailrefyne export clean.db > messages.jsonl
  mailrefyne export clean.db --format json --limit 10
  mailrefyne export clean.db --body-only -o corpus.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	flags := exportCmd.Flags()
	flags.StringP("table", "t", store.DefaultTable, "cleaned table to read")
	flags.StringP("format", "f", string(output.FormatJSONL), "output format (json, jsonl, yaml)")
	flags.IntP("limit", "n", 0, "maximum rows to export (0 for all)")
	flags.Int("offset", 0, "rows to skip")
	flags.Bool("body-only", false, "export id, subject, sender, date and cleaned body only")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.Bool("compact", false, "disable JSON pretty-printing")
}

// bodyRecord is the reduced export shape.
type bodyRecord struct {
	ID      string `json:"message_id" yaml:"message_id"`
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	From    string `json:"from,omitempty" yaml:"from,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Body    string `json:"body" yaml:"body"`
}

func newBodyRecord(m mailclean.CleanedMessage) bodyRecord {
	return bodyRecord{
		ID:      m.ID,
		Subject: m.Headers.Get("subject"),
		From:    m.Headers.Get("from"),
		Date:    m.Headers.Get("date"),
		Body:    m.BodyClean,
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	tableName, _ := flags.GetString("table")
	formatStr, _ := flags.GetString("format")
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	bodyOnly, _ := flags.GetBool("body-only")
	outPath, _ := flags.GetString("output")
	compact, _ := flags.GetBool("compact")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cleaned, err := db.Cleaned(tableName)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	buf := bufio.NewWriter(out)

	writer, err := output.NewWriter(buf, format, output.WithPretty(!compact))
	if err != nil {
		return err
	}

	written := 0
	write := func(msgs []mailclean.CleanedMessage) error {
		for _, m := range msgs {
			var item any = m
			if bodyOnly {
				item = newBodyRecord(m)
			}
			if err := writer.Write(item); err != nil {
				return err
			}
			written++
		}
		return nil
	}

	if limit > 0 || offset > 0 {
		msgs, listErr := cleaned.List(ctx, limit, offset)
		if listErr != nil {
			return listErr
		}
		err = write(msgs)
	} else {
		err = cleaned.Each(ctx, mailclean.DefaultBatchSize, write)
	}
	if err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}

	if outPath != "" {
		logInfo("Exported %d messages to %s", written, outPath)
	}
	return nil
}
