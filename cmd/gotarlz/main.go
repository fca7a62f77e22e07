// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command gotarlz creates, lists and extracts multimember tar.lz
// archives.
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/ulikunitz/lzip"
	"github.com/ulikunitz/lzip/tarlz"
)

type createCmd struct {
	Archive  string   `short:"f" required:"" help:"Archive file name."`
	Level    int      `short:"l" default:"6" help:"Compression level [0..9]."`
	Solidity string   `default:"bsolid" enum:"no_solid,bsolid,dsolid,asolid,solid" help:"Member grouping policy."`
	Workers  int      `short:"n" help:"Number of compression workers."`
	Files    []string `arg:"" help:"Files and directories to archive."`
}

type listCmd struct {
	Archive string `short:"f" required:"" help:"Archive file name."`
	Workers int    `short:"n" help:"Number of decoding workers."`
}

type extractCmd struct {
	Archive string `short:"f" required:"" help:"Archive file name."`
	Dir     string `short:"C" default:"." help:"Directory to extract into."`
	Workers int    `short:"n" help:"Number of decoding workers."`
}

type cli struct {
	Verbose bool       `short:"v" help:"Verbose diagnostics."`
	Create  createCmd  `cmd:"" aliases:"c" help:"Create an archive."`
	List    listCmd    `cmd:"" aliases:"t" help:"List archive contents."`
	Extract extractCmd `cmd:"" aliases:"x" help:"Extract archive contents."`
}

func solidity(s string) tarlz.Solidity {
	switch s {
	case "no_solid":
		return tarlz.NoSolid
	case "dsolid":
		return tarlz.DSolid
	case "asolid":
		return tarlz.ASolid
	case "solid":
		return tarlz.Solid
	}
	return tarlz.BSolid
}

func main() {
	var args cli
	kctx := kong.Parse(&args,
		kong.Name("gotarlz"),
		kong.Description("archiver with multimember lzip compression"),
		kong.UsageOnError())

	level := zerolog.WarnLevel
	if args.Verbose {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	var err error
	switch kctx.Command() {
	case "create <files>":
		c := args.Create
		f, cerr := os.Create(c.Archive)
		if cerr != nil {
			err = cerr
			break
		}
		err = tarlz.Create(f, c.Files, tarlz.CreateConfig{
			Solidity:  solidity(c.Solidity),
			Level:     c.Level,
			ZeroLevel: c.Level == 0,
			Workers:   c.Workers,
			Logger:    logger,
		})
		if cerr = f.Close(); err == nil {
			err = cerr
		}
	case "list":
		err = tarlz.ListFile(os.Stdout, args.List.Archive,
			tarlz.DecodeConfig{
				Workers: args.List.Workers,
				Logger:  logger,
			})
	case "extract":
		err = tarlz.ExtractFile(args.Extract.Dir,
			args.Extract.Archive, tarlz.DecodeConfig{
				Workers: args.Extract.Workers,
				Logger:  logger,
			})
	}
	if err != nil {
		logger.Error().Err(err).Send()
		kctx.Exit(lzip.ExitStatus(err))
	}
	kctx.Exit(0)
}
