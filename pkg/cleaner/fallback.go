package cleaner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCleaner is returned when a fallback chain has no cleaners to try.
var ErrNoCleaner = errors.New("no cleaner configured")

// Failure records one cleaner in a fallback chain that did not succeed.
type Failure struct {
	Cleaner string
	Err     error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Cleaner, f.Err)
}

// FallbackCleaner tries each cleaner in order until one succeeds.
// A cleaner that panics counts as failed and the next one is tried.
type FallbackCleaner struct {
	cleaners []Cleaner
}

// NewFallback creates a fallback chain from the given cleaners.
func NewFallback(cleaners ...Cleaner) *FallbackCleaner {
	return &FallbackCleaner{
		cleaners: cleaners,
	}
}

// Clean returns the output of the first cleaner that succeeds.
func (f *FallbackCleaner) Clean(content string) (string, error) {
	out, _, err := f.CleanWithFailures(content)
	return out, err
}

// CleanWithFailures is like Clean but also reports every cleaner that was
// tried and failed before the successful one.
func (f *FallbackCleaner) CleanWithFailures(content string) (string, []Failure, error) {
	if len(f.cleaners) == 0 {
		return "", nil, ErrNoCleaner
	}

	var failures []Failure
	var tried []string
	var lastErr error

	for _, cl := range f.cleaners {
		tried = append(tried, cl.Name())
		out, err := safeClean(cl, content)
		if err == nil {
			return out, failures, nil
		}
		failures = append(failures, Failure{Cleaner: cl.Name(), Err: err})
		lastErr = err
	}

	return "", failures, fmt.Errorf("all cleaners failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

// Name returns the fallback chain name.
func (f *FallbackCleaner) Name() string {
	names := make([]string, len(f.cleaners))
	for i, cl := range f.cleaners {
		names[i] = cl.Name()
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

func safeClean(cl Cleaner, content string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cl.Clean(content)
}
