// Package tldlist reads the list of top level domains
// accepted by the generated automaton.
package tldlist

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/KorAP/tldfa"
	"github.com/rs/zerolog/log"
)

// LoadFile reads a TLD list in the IANA format
// (tlds-alpha-by-domain.txt). Files ending in .gz
// are decompressed.
func LoadFile(file string, cfg *Config) ([]tldfa.Entry, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(file, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	entries, err := Parse(r, cfg)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("file", file).Int("entries", len(entries)).Msg("TLD list loaded")
	return entries, nil
}

// Parse reads a TLD list from an io.Reader, one label per line.
// Empty lines and comments are skipped, labels are lower cased.
// The pseudo labels of the configuration are appended and the
// result is sorted by label.
func Parse(r io.Reader, cfg *Config) ([]tldfa.Entry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	def, err := cfg.Value(cfg.Default)
	if err != nil {
		return nil, err
	}

	entries := make([]tldfa.Entry, 0, 1600)
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if len(line) == 0 || line[0] == '#' {
			continue
		}

		// Filter out IDNs
		if cfg.SkipIDN && strings.HasPrefix(strings.ToUpper(line), "XN--") {
			skipped++
			continue
		}

		entries = append(entries, tldfa.Entry{
			Word:  strings.ToLower(line),
			Value: def,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Append local labels
	for _, p := range cfg.Pseudo {
		v, err := cfg.Value(p.Flags)
		if err != nil {
			return nil, err
		}
		entries = append(entries, tldfa.Entry{
			Word:  strings.ToLower(p.Word),
			Value: v,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Word < entries[j].Word
	})

	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Msg("IDN labels filtered")
	}

	return entries, nil
}
