package main

import (
	"bytes"
	"os"

	"github.com/KorAP/tldfa"
	"github.com/KorAP/tldfa/emit"
	"github.com/KorAP/tldfa/tldlist"
	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cli struct {
	List     string `kong:"required,short='l',help='The TLD list in IANA format (may be gzipped)'"`
	Config   string `kong:"short='c',help='YAML file with flags and pseudo TLDs'"`
	Header   string `kong:"short='o',default='tld_tab.h',help='The C header to generate'"`
	Go       string `kong:"short='g',help='The Go source file to generate'"`
	Package  string `kong:"default='tld',help='Package name of the Go source file'"`
	Matrix   string `kong:"short='m',help='Store the state matrix in a binary file'"`
	Stats    string `kong:"short='s',help='Write language and states to a file'"`
	Accept   bool   `kong:"help='Reserve token 0 for the accept symbol'"`
	Strict   bool   `kong:"help='Reject duplicate labels with different flags'"`
	LogLevel string `kong:"default='info',enum='debug,info,warn,error',help='Log level'"`
}

// Main method for command line handling
func main() {

	// Parse command line parameters
	parser := kong.Must(
		&cli,
		kong.Name("tldgen"),
		kong.Description("DFA generator for top level domain checks"),
		kong.UsageOnError(),
	)

	_, err := parser.Parse(os.Args[1:])

	parser.FatalIfErrorf(err)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if level, err := zerolog.ParseLevel(cli.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	cfg := tldlist.DefaultConfig()
	if cli.Config != "" {
		cfg, err = tldlist.LoadConfig(cli.Config)
		if err != nil {
			log.Fatal().Err(err).Str("file", cli.Config).Msg("Unable to load configuration")
		}
	}

	entries, err := tldlist.LoadFile(cli.List, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("file", cli.List).Msg("Unable to load TLD list")
	}

	var opts []tldfa.TrieOption
	if cli.Strict {
		opts = append(opts, tldfa.RejectDuplicates())
	}

	dfa, err := tldfa.Build(entries, opts...)
	if err != nil {
		log.Fatal().Err(err).Bool("bug", tldfa.IsFatal(err)).Msg("Unable to build DFA")
	}

	var topts []tldfa.TokenOption
	if cli.Accept {
		topts = append(topts, tldfa.ReserveAccept())
	}

	mat, err := dfa.ToMatrix(dfa.Tokenize(topts...))
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to serialize DFA")
	}

	log.Info().
		Int("labels", len(entries)).
		Int("states", mat.Meta.RowCount).
		Int("tokens", len(mat.Tokens)).
		Msg("DFA generated")

	eopts := emit.DefaultOptions()
	eopts.Defines = emit.DefinesFromFlags(cfg.Flags)
	eopts.Package = cli.Package

	// Render everything before writing, so a failure
	// leaves no partial output behind
	outputs := make(map[string][]byte)

	var buf bytes.Buffer
	if err = emit.WriteC(&buf, mat, eopts); err != nil {
		log.Fatal().Err(err).Msg("Unable to generate C header")
	}
	outputs[cli.Header] = append([]byte(nil), buf.Bytes()...)

	if cli.Go != "" {
		buf.Reset()
		if err = emit.WriteGo(&buf, mat, eopts); err != nil {
			log.Fatal().Err(err).Msg("Unable to generate Go source")
		}
		outputs[cli.Go] = append([]byte(nil), buf.Bytes()...)
	}

	if cli.Stats != "" {
		buf.Reset()
		if err = dfa.WriteStats(&buf); err != nil {
			log.Fatal().Err(err).Msg("Unable to generate statistics")
		}
		outputs[cli.Stats] = append([]byte(nil), buf.Bytes()...)
	}

	for file, data := range outputs {
		if err = os.WriteFile(file, data, 0644); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Unable to write output")
		}
		log.Debug().Str("file", file).Int("bytes", len(data)).Msg("Written")
	}

	if cli.Matrix != "" {
		if _, err = mat.Save(cli.Matrix); err != nil {
			os.Exit(1)
		}
	}
}
