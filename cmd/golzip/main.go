// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command golzip compresses and decompresses files in the lzip
// format.
package main

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/ulikunitz/lzip"
	"github.com/ulikunitz/lzip/internal/xio"
)

type cli struct {
	Decompress bool `short:"d" help:"Decompress instead of compress."`
	Test       bool `short:"t" help:"Test the integrity of the input files."`
	Stdout     bool `short:"c" help:"Write to standard output, keep input files."`
	Keep       bool `short:"k" help:"Keep input files."`
	Level      int  `short:"l" default:"6" help:"Compression level [0..9]."`
	Verbose    bool `short:"v" help:"Verbose diagnostics."`

	Files []string `arg:"" optional:"" help:"Input files; '-' or none reads stdin."`
}

func main() {
	var args cli
	kctx := kong.Parse(&args,
		kong.Name("golzip"),
		kong.Description("LZMA lossless data compressor, lzip format"),
		kong.UsageOnError())

	level := zerolog.WarnLevel
	if args.Verbose {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	status := 0
	files := args.Files
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, name := range files {
		if err := processFile(name, &args, logger); err != nil {
			logger.Error().Str("file", name).Err(err).Send()
			if s := lzip.ExitStatus(err); s > status {
				status = s
			}
		}
	}
	kctx.Exit(status)
}

func processFile(name string, args *cli, logger zerolog.Logger) error {
	var in io.Reader
	var inFile *os.File
	if name == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
		inFile = f
	}

	if args.Decompress || args.Test {
		lr, err := lzip.NewReader(in)
		if err != nil {
			return err
		}
		var out io.Writer = io.Discard
		wcs := xio.NewWriteCloserStack()
		if !args.Test {
			if args.Stdout || name == "-" {
				out = os.Stdout
			} else {
				outName := strings.TrimSuffix(name, ".lz")
				if outName == name {
					outName = name + ".out"
				}
				o, err := os.Create(outName)
				if err != nil {
					return err
				}
				wcs.Push(o)
				out = o
			}
		}
		if _, err = io.Copy(out, lr); err != nil {
			wcs.Close()
			return err
		}
		if err = wcs.Close(); err != nil {
			return err
		}
		if args.Test {
			logger.Info().Str("file", name).Msg("ok")
		}
		return nil
	}

	// compression
	cfg := lzip.WriterConfig{Level: args.Level,
		ZeroLevel: args.Level == 0}
	if inFile != nil {
		if st, err := inFile.Stat(); err == nil {
			cfg.SizeHint = st.Size()
			cfg.ZeroSizeHint = true
		}
	}
	var out io.Writer
	wcs := xio.NewWriteCloserStack()
	if args.Stdout || name == "-" {
		out = os.Stdout
	} else {
		o, err := os.Create(name + ".lz")
		if err != nil {
			return err
		}
		wcs.Push(o)
		out = o
	}
	lw, err := lzip.NewWriterConfig(out, cfg)
	if err != nil {
		wcs.Close()
		return err
	}
	if _, err = io.Copy(lw, in); err != nil {
		wcs.Close()
		return err
	}
	if err = lw.Close(); err != nil {
		wcs.Close()
		return err
	}
	if err = wcs.Close(); err != nil {
		return err
	}
	if !args.Keep && !args.Stdout && name != "-" {
		return os.Remove(name)
	}
	return nil
}
