// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command golziprecover validates, repairs and surgically edits lzip
// files, using a forward-error-correction sidecar file where one is
// available.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ulikunitz/lzip"
	"github.com/ulikunitz/lzip/fec"
)

type fecCreateCmd struct {
	File      string `arg:"" help:"File to protect."`
	BlockSize int64  `help:"Fec block size."`
	FecBlocks int    `help:"Number of fec blocks."`
	CRC32C    bool   `help:"Add a CRC32-C array."`
}

type fecTestCmd struct {
	File string `arg:"" help:"Protected file."`
	Fec  string `help:"Fec file name; default <file>.fec."`
}

type fecRepairCmd struct {
	File string `arg:"" help:"Protected file."`
	Fec  string `help:"Fec file name; default <file>.fec."`
}

type dumpCmd struct {
	File    string `arg:"" help:"Lzip file."`
	Tdata   bool   `help:"Dump the trailing data alone."`
	Damaged bool   `help:"Dump damaged members."`
}

type removeCmd struct {
	File    string `arg:"" help:"Lzip file."`
	Damaged bool   `help:"Remove damaged members."`
	Empty   bool   `help:"Remove empty members."`
	Tdata   bool   `help:"Remove the trailing data."`
}

type nonzeroRepairCmd struct {
	File string `arg:"" help:"Lzip file."`
}

type appendTdataCmd struct {
	File  string `arg:"" help:"Lzip file."`
	Data  string `arg:"" help:"Data to append."`
	Boxed bool   `help:"Wrap the data in a databox."`
}

type cli struct {
	Verbose       bool             `short:"v" help:"Verbose diagnostics."`
	FecCreate     fecCreateCmd     `cmd:"" help:"Create a fec sidecar file."`
	FecTest       fecTestCmd       `cmd:"" help:"Check a file against its fec data."`
	FecRepair     fecRepairCmd     `cmd:"" help:"Repair a file using its fec data."`
	Dump          dumpCmd          `cmd:"" help:"Dump selected members to stdout."`
	Remove        removeCmd        `cmd:"" help:"Remove selected members in place."`
	NonzeroRepair nonzeroRepairCmd `cmd:"" name:"nonzero-repair" help:"Repair nonzero first LZMA bytes."`
	AppendTdata   appendTdataCmd   `cmd:"" name:"append-tdata" help:"Append trailing data."`
}

func isLZ(name string) bool {
	n := len(name)
	return (n > 3 && name[n-3:] == ".lz") ||
		(n > 4 && name[n-4:] == ".tlz")
}

func fecName(file, fecFile string) string {
	if fecFile != "" {
		return fecFile
	}
	return file + ".fec"
}

func loadFec(file, fecFile string) (*fec.Index, []byte, error) {
	f, err := os.Open(fecName(file, fecFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	idx, err := fec.NewIndex(f, fec.IndexConfig{})
	if err != nil {
		return nil, nil, err
	}
	prodata, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, err
	}
	return idx, prodata, nil
}

func main() {
	var args cli
	kctx := kong.Parse(&args,
		kong.Name("golziprecover"),
		kong.Description("data recovery tool for the lzip format"),
		kong.UsageOnError())

	level := zerolog.WarnLevel
	if args.Verbose {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	var err error
	switch kctx.Command() {
	case "fec-create <file>":
		c := args.FecCreate
		var prodata []byte
		if prodata, err = os.ReadFile(c.File); err != nil {
			break
		}
		var data []byte
		data, err = fec.Create(prodata, fec.CreateConfig{
			BlockSize: c.BlockSize,
			FecBlocks: c.FecBlocks,
			CRC32C:    c.CRC32C,
		})
		if err != nil {
			break
		}
		err = os.WriteFile(c.File+".fec", data, 0o644)
	case "fec-test <file>":
		c := args.FecTest
		var idx *fec.Index
		var prodata []byte
		if idx, prodata, err = loadFec(c.File, c.Fec); err != nil {
			break
		}
		var bad []int64
		if bad, err = fec.Check(idx, prodata, isLZ(c.File)); err != nil {
			break
		}
		if len(bad) > 0 {
			err = errors.Errorf("%d damaged blocks found", len(bad))
			break
		}
		logger.Info().Str("file", c.File).
			Msg("protected data checked successfully")
	case "fec-repair <file>":
		c := args.FecRepair
		var idx *fec.Index
		var prodata []byte
		if idx, prodata, err = loadFec(c.File, c.Fec); err != nil {
			break
		}
		bad, _ := fec.FindBadBlocks(idx, prodata, isLZ(c.File))
		if len(bad) == 0 {
			logger.Info().Msg("repair not needed")
			break
		}
		var repaired []byte
		if repaired, err = fec.Repair(idx, prodata, bad); err != nil {
			break
		}
		err = os.WriteFile(c.File, repaired, 0o644)
	case "dump <file>":
		c := args.Dump
		var f *os.File
		if f, err = os.Open(c.File); err != nil {
			break
		}
		st, serr := f.Stat()
		if serr != nil {
			f.Close()
			err = serr
			break
		}
		var idx *lzip.Index
		if idx, err = lzip.NewIndex(f, st.Size()); err != nil {
			f.Close()
			break
		}
		sel := lzip.MemberSelection{
			Damaged: c.Damaged,
			TData:   c.Tdata,
		}
		if !c.Tdata && !c.Damaged {
			sel.Ranges = []lzip.Block{
				{Pos: 0, Size: int64(idx.Members())},
			}
		}
		err = lzip.Dump(os.Stdout, f, idx, sel, false)
		f.Close()
	case "remove <file>":
		c := args.Remove
		err = lzip.Remove(c.File, lzip.MemberSelection{
			Damaged: c.Damaged,
			Empty:   c.Empty,
			TData:   c.Tdata,
		})
	case "nonzero-repair <file>":
		var n int
		n, err = lzip.NonzeroRepair(args.NonzeroRepair.File)
		if err == nil {
			fmt.Printf("%d members repaired\n", n)
		}
	case "append-tdata <file> <data>":
		c := args.AppendTdata
		err = lzip.AppendTData(c.File, []byte(c.Data), c.Boxed)
	}
	if err != nil {
		logger.Error().Err(err).Send()
		kctx.Exit(lzip.ExitStatus(err))
	}
	kctx.Exit(0)
}
