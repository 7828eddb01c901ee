package tldlist

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/KorAP/tldfa"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFlag = errors.New("tldlist: unknown flag")
	ErrBadConfig   = errors.New("tldlist: invalid configuration")
)

// Pseudo is a label accepted in addition to the official list.
type Pseudo struct {
	Word  string   `yaml:"word"`
	Flags []string `yaml:"flags"`
}

// Config describes which labels are accepted
// and which flags they carry.
type Config struct {
	// Acceptance flags by name, e.g. mail: 1
	Flags map[string]int `yaml:"flags"`

	// Flags of all entries of the official list
	Default []string `yaml:"default"`

	Pseudo []Pseudo `yaml:"pseudo"`

	// Skip internationalized labels (XN--)
	SkipIDN bool `yaml:"skip_idn"`
}

// DefaultConfig accepts every official label for mail and
// host names, plus the pseudo labels used by some ircds.
func DefaultConfig() *Config {
	return &Config{
		Flags: map[string]int{
			"mail": 1,
			"host": 2,
		},
		Default: []string{"mail", "host"},
		Pseudo: []Pseudo{
			{Word: "fw", Flags: []string{"host"}},
			{Word: "lan", Flags: []string{"mail", "host"}},
			{Word: "thc", Flags: []string{"host"}},
		},
		SkipIDN: true,
	}
}

// LoadConfig reads a YAML configuration file. Missing
// keys keep their default values.
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig reads a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxFlag is the largest flag value. Combined flags are
// stored in an unsigned char by the generated C header.
const MaxFlag = 0xff

// Validate checks that all referenced flags are defined.
func (cfg *Config) Validate() error {
	for name, v := range cfg.Flags {
		if v <= 0 || v > MaxFlag {
			return fmt.Errorf("%w: flag %q needs a value between 1 and %d", ErrBadConfig, name, MaxFlag)
		}
	}
	if _, err := cfg.Value(cfg.Default); err != nil {
		return err
	}
	for _, p := range cfg.Pseudo {
		if p.Word == "" {
			return fmt.Errorf("%w: empty pseudo label", ErrBadConfig)
		}
		if _, err := cfg.Value(p.Flags); err != nil {
			return err
		}
	}
	return nil
}

// Value combines the named flags.
func (cfg *Config) Value(names []string) (tldfa.Value, error) {
	v := 0
	for _, name := range names {
		f, ok := cfg.Flags[name]
		if !ok {
			return tldfa.NoValue, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
		v |= f
	}
	return tldfa.Value(v), nil
}

// FlagNames lists the flag names ordered by value.
func (cfg *Config) FlagNames() []string {
	names := make([]string, 0, len(cfg.Flags))
	for name := range cfg.Flags {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if cfg.Flags[names[i]] != cfg.Flags[names[j]] {
			return cfg.Flags[names[i]] < cfg.Flags[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
