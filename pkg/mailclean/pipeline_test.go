package mailclean

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const uniqueFooter = "Tom Jones\nBuyer\nOther Supplies Inc\n9 Harbour Road\nShelbyville\nPhone: 555 0199\nFax: 555 0198\nwww.other-supplies.test\nAsk about our catalogue\nVAT 99887766"

func corpus(shared int) []RawMessage {
	msgs := make([]RawMessage, 0, shared+1)
	for i := 0; i < shared; i++ {
		msgs = append(msgs, RawMessage{ID: fmt.Sprintf("m%03d", i), Payload: footerMessage(i, corporateFooter)})
	}
	return append(msgs, RawMessage{ID: "unique", Payload: footerMessage(999, uniqueFooter)})
}

func TestPipeline_BuildsAndRemovesFingerprints(t *testing.T) {
	msgs := corpus(120)

	var built *FingerprintSet
	var lastDone, lastTotal, calls int
	out, summary, err := CleanAll(context.Background(), DefaultConfig(), PipelineOptions{
		Workers:           4,
		BatchSize:         16,
		BuildFingerprints: true,
		OnFingerprints:    func(set *FingerprintSet) { built = set },
		OnProgress: func(done, total int) {
			calls++
			lastDone, lastTotal = done, total
		},
	}, msgs)
	if err != nil {
		t.Fatalf("CleanAll() error = %v", err)
	}

	if len(out) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(out), len(msgs))
	}
	for i := range msgs {
		if out[i].ID != msgs[i].ID {
			t.Fatalf("out[%d].ID = %q, want %q", i, out[i].ID, msgs[i].ID)
		}
	}
	for _, m := range out[:120] {
		if strings.Contains(m.BodyClean, "Acme Widgets") {
			t.Fatalf("%s kept the shared footer: %q", m.ID, m.BodyClean)
		}
	}
	if !strings.Contains(out[120].BodyClean, "Other Supplies Inc") {
		t.Errorf("unique footer was removed: %q", out[120].BodyClean)
	}

	if built == nil || built.Messages() != len(msgs) {
		t.Errorf("OnFingerprints not called with the full set: %+v", built)
	}
	if summary.Messages != len(msgs) || summary.Fingerprints != 2 || summary.FrequentFingerprints != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.SavedBytes() <= 0 {
		t.Errorf("SavedBytes() = %d", summary.SavedBytes())
	}
	if calls != 8 || lastDone != len(msgs) || lastTotal != len(msgs) {
		t.Errorf("progress calls = %d, last = %d/%d", calls, lastDone, lastTotal)
	}
}

func TestPipeline_SuppliedFingerprints(t *testing.T) {
	set := buildSet(t, 150, corporateFooter)

	out, summary, err := CleanAll(context.Background(), DefaultConfig(), PipelineOptions{
		Workers:      2,
		Fingerprints: set,
	}, corpus(3))
	if err != nil {
		t.Fatalf("CleanAll() error = %v", err)
	}
	if strings.Contains(out[0].BodyClean, "Acme Widgets") {
		t.Errorf("footer not removed with supplied set: %q", out[0].BodyClean)
	}
	if summary.Fingerprints != 1 {
		t.Errorf("Fingerprints = %d", summary.Fingerprints)
	}
}

func TestPipeline_MinimalSkipsFingerprints(t *testing.T) {
	called := false
	out, summary, err := CleanAll(context.Background(), PresetMinimal(), PipelineOptions{
		BuildFingerprints: true,
		OnFingerprints:    func(*FingerprintSet) { called = true },
	}, corpus(120))
	if err != nil {
		t.Fatalf("CleanAll() error = %v", err)
	}
	if called || summary.Fingerprints != 0 {
		t.Error("minimal level should not build fingerprints")
	}
	if !strings.Contains(out[0].BodyClean, "Acme Widgets") {
		t.Errorf("minimal level removed the footer: %q", out[0].BodyClean)
	}
}

func TestPipeline_Oversize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fingerprint.MaxEntries = 1

	t.Run("degrades", func(t *testing.T) {
		out, summary, err := CleanAll(context.Background(), cfg, PipelineOptions{BuildFingerprints: true}, corpus(120))
		if err != nil {
			t.Fatalf("CleanAll() error = %v", err)
		}
		if summary.Fingerprints != 0 {
			t.Errorf("Fingerprints = %d, want 0", summary.Fingerprints)
		}
		if !strings.Contains(out[0].BodyClean, "Acme Widgets") {
			t.Errorf("footer removed without fingerprints: %q", out[0].BodyClean)
		}
	})

	t.Run("required", func(t *testing.T) {
		_, _, err := CleanAll(context.Background(), cfg, PipelineOptions{
			BuildFingerprints:   true,
			RequireFingerprints: true,
		}, corpus(120))
		if !errors.Is(err, ErrCorpusOversize) {
			t.Errorf("CleanAll() error = %v, want ErrCorpusOversize", err)
		}
	})
}

func TestNewPipeline_Errors(t *testing.T) {
	if _, err := NewPipeline(DefaultConfig(), PipelineOptions{RequireFingerprints: true}); !errors.Is(err, ErrFingerprintsRequired) {
		t.Errorf("NewPipeline() error = %v, want ErrFingerprintsRequired", err)
	}

	bad := DefaultConfig()
	bad.Fingerprint.WindowLines = 0
	if _, err := NewPipeline(bad, PipelineOptions{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewPipeline() error = %v, want ErrInvalidConfig", err)
	}
}

type failingSink struct {
	err error
}

func (f failingSink) UpsertCleaned(context.Context, []CleanedMessage) error {
	return f.err
}

func TestPipeline_SinkError(t *testing.T) {
	sinkErr := errors.New("disk full")
	p, err := NewPipeline(DefaultConfig(), PipelineOptions{})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	_, err = p.Run(context.Background(), SliceSource(corpus(2)), failingSink{err: sinkErr})
	if !errors.Is(err, sinkErr) {
		t.Errorf("Run() error = %v, want %v", err, sinkErr)
	}
	if !strings.Contains(err.Error(), "writing cleaned batch") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, build := range []bool{false, true} {
		t.Run(fmt.Sprintf("build=%v", build), func(t *testing.T) {
			_, _, err := CleanAll(ctx, DefaultConfig(), PipelineOptions{BuildFingerprints: build}, corpus(5))
			if !errors.Is(err, context.Canceled) {
				t.Errorf("CleanAll() error = %v, want context.Canceled", err)
			}
		})
	}
}

func TestSliceSource(t *testing.T) {
	src := SliceSource(corpus(9))

	n, err := src.Count(context.Background())
	if err != nil || n != 10 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	var sizes []int
	err = src.Each(context.Background(), 4, func(batch []RawMessage) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if fmt.Sprint(sizes) != "[4 4 2]" {
		t.Errorf("batch sizes = %v", sizes)
	}
}
