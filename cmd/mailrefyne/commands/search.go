package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mailrefyne/internal/output"
	"github.com/jmylchreest/mailrefyne/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search DB QUERY",
	Short: "Full-text search over cleaned messages",
	Long: `Search runs an FTS query against the index built by clean (or by
import with --raw) and prints matching ids, subjects and snippets.

Examples:
  mailrefyne search clean.db "budget AND review"
  mailrefyne search mail.db pizza --raw --limit 5
  mailrefyne search clean.db invoice --format json`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()
	flags.StringP("table", "t", store.DefaultTable, "table to search")
	flags.IntP("limit", "n", 20, "maximum hits")
	flags.Bool("raw", false, "search a raw table instead of a cleaned one")
	flags.StringP("format", "f", "", "print hits as json, jsonl or yaml")
}

func runSearch(cmd *cobra.Command, args []string) error {
	dbPath, query := args[0], args[1]
	tableName, _ := cmd.Flags().GetString("table")
	limit, _ := cmd.Flags().GetInt("limit")
	searchRaw, _ := cmd.Flags().GetBool("raw")
	formatStr, _ := cmd.Flags().GetString("format")

	var format output.Format
	if formatStr != "" {
		f, err := output.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		format = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var hits []store.Hit
	if searchRaw {
		raw, err := db.Raw(tableName)
		if err != nil {
			return err
		}
		hits, err = raw.Search(ctx, query, limit)
		if err != nil {
			return err
		}
	} else {
		cleaned, err := db.Cleaned(tableName)
		if err != nil {
			return err
		}
		hits, err = cleaned.Search(ctx, query, limit)
		if err != nil {
			return err
		}
	}

	if format != "" {
		writer, err := output.NewWriter(os.Stdout, format)
		if err != nil {
			return err
		}
		if err := output.WriteAll(writer, hits); err != nil {
			return err
		}
		return writer.Close()
	}

	for _, hit := range hits {
		fmt.Printf("%s\n  %s\n  %s\n\n", hit.MessageID, hit.Subject, oneLine(hit.Snippet))
	}
	logInfo("%d hits for %q in %s", len(hits), query, tableName)
	return nil
}

// oneLine collapses the whitespace of s onto a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
