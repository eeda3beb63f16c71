package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mailrefyne/internal/mbox"
	"github.com/jmylchreest/mailrefyne/internal/output"
	"github.com/jmylchreest/mailrefyne/internal/report"
	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

var previewCmd = &cobra.Command{
	Use:   "preview [FILE|-]",
	Short: "Clean a single payload and show the result",
	Long: `Preview cleans one payload read from FILE or stdin and prints the
cleaned text to stdout and its stats to stderr. Corpus fingerprints are
not available for a single payload, so repeated-text removal never runs.

With --message the input is parsed as an RFC 5322 message first and its
text parts become the payload. With --compare every level is run and the
results are tabulated.

Examples:
  mailrefyne preview message.html
  mailrefyne preview --message --level aggressive < message.eml
  mailrefyne preview message.html --compare
  mailrefyne preview message.html --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	addCleaningFlags(previewCmd)
	flags := previewCmd.Flags()
	flags.Bool("message", false, "parse the input as an RFC 5322 message")
	flags.Bool("compare", false, "compare every cleaning level")
	flags.Bool("json", false, "print the result as JSON")
	flags.StringP("format", "f", "", "print the result as json, jsonl or yaml")
}

// previewResult is the structured form of a preview.
type previewResult struct {
	Source    string                  `json:"source" yaml:"source"`
	Level     mailclean.Level         `json:"level" yaml:"level"`
	Stats     mailclean.CleaningStats `json:"stats" yaml:"stats"`
	Impact    report.Impact           `json:"impact" yaml:"impact"`
	Warnings  []mailclean.Warning     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	BodyClean string                  `json:"body_clean" yaml:"body_clean"`
}

func runPreview(cmd *cobra.Command, args []string) error {
	source := "-"
	if len(args) == 1 {
		source = args[0]
	}
	asMessage, _ := cmd.Flags().GetBool("message")
	compare, _ := cmd.Flags().GetBool("compare")

	format, err := previewFormat(cmd)
	if err != nil {
		return err
	}

	cfg, err := cleaningConfig(cmd)
	if err != nil {
		return err
	}

	payload, err := readPayload(source, asMessage)
	if err != nil {
		return err
	}

	if compare {
		results, err := report.CompareLevels(payload, cfg)
		if err != nil {
			return err
		}
		if format != "" {
			return writeStructured(os.Stdout, format, results)
		}
		report.WriteComparison(os.Stdout, source, len(payload), results)
		return nil
	}

	c, err := mailclean.New(cfg)
	if err != nil {
		return err
	}
	out := c.Clean(mailclean.RawMessage{ID: source, Payload: payload}, nil)

	if format != "" {
		return writeStructured(os.Stdout, format, []previewResult{{
			Source:    source,
			Level:     cfg.Level,
			Stats:     out.Stats,
			Impact:    report.NewImpact(payload, out.BodyClean),
			Warnings:  out.Warnings,
			BodyClean: out.BodyClean,
		}})
	}

	fmt.Fprintln(os.Stdout, out.BodyClean)
	if !isQuiet() {
		report.WriteMessageStats(os.Stderr, source, out)
		for _, w := range out.Warnings {
			fmt.Fprintf(os.Stderr, "  - %s\n", w)
		}
	}
	return nil
}

func previewFormat(cmd *cobra.Command) (output.Format, error) {
	formatStr, _ := cmd.Flags().GetString("format")
	if formatStr != "" {
		return output.ParseFormat(formatStr)
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return output.FormatJSON, nil
	}
	return "", nil
}

// readPayload reads source, or stdin for "-". When asMessage is set the
// data is parsed as a message and its text parts are returned.
func readPayload(source string, asMessage bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", source, err)
	}

	if !asMessage {
		return string(data), nil
	}
	msg, err := mbox.Parse(data)
	if err != nil {
		return "", err
	}
	return msg.Payload, nil
}

// writeStructured writes items in format. A single item is written on its
// own rather than as a one-element list.
func writeStructured[T any](w io.Writer, format output.Format, items []T) error {
	writer, err := output.NewWriter(w, format, output.WithUnwrapSingle(true))
	if err != nil {
		return err
	}
	if err := output.WriteAll(writer, items); err != nil {
		return err
	}
	return writer.Close()
}
