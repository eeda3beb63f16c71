package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

func newConfigCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addCleaningFlags(cmd)
	cmd.Flags().Int("threshold", 0, "")
	cmd.Flags().Bool("scale-threshold", false, "")
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cmd
}

func setCleaningSection(t *testing.T, section map[string]any) {
	t.Helper()
	viper.Set("cleaning", section)
	t.Cleanup(func() { viper.Set("cleaning", map[string]any{}) })
}

func TestCleaningConfig(t *testing.T) {
	tests := []struct {
		name    string
		section map[string]any
		args    []string
		check   func(t *testing.T, cfg *mailclean.Config)
		wantErr error
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *mailclean.Config) {
				if cfg.Level != mailclean.LevelStandard || cfg.Fingerprint.Threshold != 100 {
					t.Errorf("got level %s threshold %d", cfg.Level, cfg.Fingerprint.Threshold)
				}
			},
		},
		{
			name: "flags",
			args: []string{"--level", "aggressive", "--threshold", "5", "--engine", "html-to-markdown", "--scale-threshold"},
			check: func(t *testing.T, cfg *mailclean.Config) {
				if cfg.Level != mailclean.LevelAggressive {
					t.Errorf("Level = %s", cfg.Level)
				}
				if cfg.Fingerprint.Threshold != 5 || !cfg.Fingerprint.ScaleWithCorpus {
					t.Errorf("Fingerprint = %+v", cfg.Fingerprint)
				}
				if cfg.Converter.Engine != mailclean.EngineHTMLToMarkdown {
					t.Errorf("Engine = %s", cfg.Converter.Engine)
				}
			},
		},
		{
			name: "config section",
			section: map[string]any{
				"level":       "minimal",
				"fingerprint": map[string]any{"threshold": 7},
				"boilerplate": map[string]any{"max_block_bytes": 0},
			},
			check: func(t *testing.T, cfg *mailclean.Config) {
				if cfg.Level != mailclean.LevelMinimal {
					t.Errorf("Level = %s", cfg.Level)
				}
				if cfg.Fingerprint.Threshold != 7 || cfg.Fingerprint.WindowLines != 10 {
					t.Errorf("Fingerprint = %+v", cfg.Fingerprint)
				}
				if cfg.Boilerplate.MaxBlockBytes != 0 || len(cfg.Boilerplate.BlockMarkers) == 0 {
					t.Errorf("Boilerplate = %+v", cfg.Boilerplate)
				}
			},
		},
		{
			name:    "flag wins over config",
			section: map[string]any{"level": "minimal"},
			args:    []string{"--level", "aggressive"},
			check: func(t *testing.T, cfg *mailclean.Config) {
				if cfg.Level != mailclean.LevelAggressive {
					t.Errorf("Level = %s", cfg.Level)
				}
			},
		},
		{
			name: "strip links",
			args: []string{"--strip-links", "--drop-images"},
			check: func(t *testing.T, cfg *mailclean.Config) {
				if !cfg.Converter.StripLinks || !cfg.Converter.DropImages {
					t.Errorf("Converter = %+v", cfg.Converter)
				}
			},
		},
		{
			name:    "unknown level",
			args:    []string{"--level", "extreme"},
			wantErr: mailclean.ErrInvalidLevel,
		},
		{
			name:    "threshold too low",
			args:    []string{"--threshold", "1"},
			wantErr: mailclean.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.section != nil {
				setCleaningSection(t, tt.section)
			}
			cfg, err := cleaningConfig(newConfigCommand(t, tt.args...))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("cleaningConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cleaningConfig() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "mail.db")
	if !samePath(a, filepath.Join(dir, ".", "mail.db")) {
		t.Error("samePath() = false for equivalent paths")
	}
	if samePath(a, filepath.Join(dir, "clean.db")) {
		t.Error("samePath() = true for different files")
	}
}

const sharedFooter = "Jane Smith\nSenior Analyst\nAcme Widgets Ltd\n123 Industrial Way\nSpringfield\nPhone: 555 0100\nFax: 555 0101\nwww.acme-widgets.test\nFollow us on social media\nReg. no. 1234567"

func writeMbox(t *testing.T, path string, n int) {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "From jane@acme.test Mon Jan  1 00:00:00 2024\n")
		fmt.Fprintf(&sb, "Message-ID: <m%d@acme.test>\nFrom: Jane <jane@acme.test>\nSubject: Order %d\n", i, i)
		fmt.Fprintf(&sb, "Content-Type: text/plain; charset=utf-8\n\n")
		fmt.Fprintf(&sb, "Message number %d.\n\nSome unique detail %d.\n%s\n\n", i, i, sharedFooter)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(append(args, "--quiet"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
}

func TestImportCleanExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	mboxPath := filepath.Join(dir, "archive.mbox")
	dbPath := filepath.Join(dir, "mail.db")
	fpPath := filepath.Join(dir, "fp.yaml")
	outPath := filepath.Join(dir, "out.jsonl")
	writeMbox(t, mboxPath, 3)

	execute(t, "import", dbPath, mboxPath)
	execute(t, "clean", dbPath, dbPath,
		"--dest-table", "cleaned",
		"--build-signature-db", "--threshold", "3",
		"--save-fingerprints", fpPath)
	execute(t, "export", dbPath, "--table", "cleaned", "--body-only", "-o", outPath)

	if _, err := os.Stat(fpPath); err != nil {
		t.Errorf("fingerprint file not written: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var records []bodyRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec bodyRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Unmarshal(%q) error = %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	if len(records) != 3 {
		t.Fatalf("exported %d records, want 3", len(records))
	}
	for i, rec := range records {
		if rec.ID != fmt.Sprintf("<m%d@acme.test>", i) || rec.Subject != fmt.Sprintf("Order %d", i) {
			t.Errorf("record %d = %+v", i, rec)
		}
		if strings.Contains(rec.Body, "Acme Widgets Ltd") {
			t.Errorf("record %d kept the shared footer:\n%s", i, rec.Body)
		}
		if !strings.Contains(rec.Body, fmt.Sprintf("Some unique detail %d.", i)) {
			t.Errorf("record %d lost its text:\n%s", i, rec.Body)
		}
	}
}

func TestClean_SameTableRejected(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	dbPath := filepath.Join(dir, "mail.db")

	rootCmd.SetArgs([]string{"clean", dbPath, dbPath, "--dest-table", "messages", "--quiet"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--dest-table") {
		t.Errorf("Execute() error = %v, want a --dest-table error", err)
	}
}

func TestClean_FingerprintSourcesExclusive(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	fpPath := filepath.Join(dir, "fp.yaml")
	if err := os.WriteFile(fpPath, []byte("messages: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"clean", filepath.Join(dir, "src.db"), filepath.Join(dir, "dest.db"),
		"--build-signature-db", "--fingerprints", fpPath, "--quiet"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--fingerprints cannot be combined") {
		t.Errorf("Execute() error = %v, want the combination rejected", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dest.db")); !os.IsNotExist(statErr) {
		t.Errorf("destination created before the flags were checked: %v", statErr)
	}
}
