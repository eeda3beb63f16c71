package mailclean

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

type fingerprintFile struct {
	WindowLines    int            `yaml:"window_lines"`
	MinWindowChars int            `yaml:"min_window_chars"`
	Messages       int            `yaml:"messages"`
	Fingerprints   map[string]int `yaml:"fingerprints"`
}

// SaveFingerprints writes set as YAML so a corpus pass can be reused.
func SaveFingerprints(w io.Writer, set *FingerprintSet) error {
	file := fingerprintFile{
		Fingerprints: make(map[string]int, set.Len()),
	}
	if set != nil {
		file.WindowLines = set.config.WindowLines
		file.MinWindowChars = set.config.MinWindowChars
		file.Messages = set.messages
		for fp, count := range set.counts {
			file.Fingerprints[fmt.Sprintf("%016x", uint64(fp))] = count
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encoding fingerprints: %w", err)
	}
	return enc.Close()
}

// LoadFingerprints reads a set written by SaveFingerprints. The file must
// have been built with the same window settings as cfg.
func LoadFingerprints(r io.Reader, cfg FingerprintConfig) (*FingerprintSet, error) {
	var file fingerprintFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding fingerprints: %w", err)
	}

	if file.WindowLines != cfg.WindowLines || file.MinWindowChars != cfg.MinWindowChars {
		return nil, fmt.Errorf("%w: fingerprint file uses a %d line / %d char window, config has %d / %d",
			ErrInvalidConfig, file.WindowLines, file.MinWindowChars, cfg.WindowLines, cfg.MinWindowChars)
	}

	set := &FingerprintSet{
		counts:   make(map[Fingerprint]int, len(file.Fingerprints)),
		messages: file.Messages,
		config:   cfg,
	}
	for key, count := range file.Fingerprints {
		v, err := strconv.ParseUint(key, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("decoding fingerprint %q: %w", key, err)
		}
		set.counts[Fingerprint(v)] = count
	}
	return set, nil
}
