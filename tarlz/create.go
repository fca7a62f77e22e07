// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarlz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ulikunitz/lzip"
)

// CreateConfig provides the parameters for archive creation.
type CreateConfig struct {
	// Solidity selects the grouping of tar members into lzip
	// members. Default is BSolid.
	Solidity Solidity

	// DataSize is the target uncompressed size of a lzip member for
	// the BSolid policy. Default is twice the dictionary size.
	DataSize int64

	// Level selects the lzip compression level. Default is 6.
	Level int
	// ZeroLevel marks level 0 as intentional.
	ZeroLevel bool
	// DictSize overrides the dictionary size of the level.
	DictSize int

	// Workers is the number of compressing goroutines. Default is
	// the number of CPUs. The ASolid and Solid policies always use
	// one worker.
	Workers int

	// NoRecursive disables archiving the contents of directories.
	// By default directories are archived recursively.
	NoRecursive bool

	// NumericOwner skips user and group name lookups.
	NumericOwner bool
	// Dereference archives what symbolic links point to.
	Dereference bool

	// Logger receives one debug event per archived regular file when
	// several workers compress the archive. The serial path does not
	// log.
	Logger zerolog.Logger
}

// SetDefaults replaces zero values with default values.
func (cfg *CreateConfig) SetDefaults() {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Solidity == ASolid || cfg.Solidity == Solid {
		cfg.Workers = 1
	}
	wcfg := lzip.WriterConfig{
		Level:     cfg.Level,
		ZeroLevel: cfg.ZeroLevel,
		DictSize:  cfg.DictSize,
	}
	wcfg.SetDefaults()
	cfg.Level = wcfg.Level
	cfg.DictSize = wcfg.DictSize
	if cfg.DataSize == 0 {
		cfg.DataSize = 2 * int64(cfg.DictSize)
	}
}

// Verify checks the configuration.
func (cfg *CreateConfig) Verify() error {
	if cfg == nil {
		return errors.New("tarlz: create configuration is nil")
	}
	if cfg.Workers < 1 {
		return errors.New("tarlz: Workers must be positive")
	}
	if cfg.DataSize < minDataSize {
		return errors.New("tarlz: bsolid data size is too small")
	}
	return nil
}

// ipacket describes one tar member to be archived: the formatted
// extended-records block, the ustar header and the name of the file
// whose data the worker reads.
type ipacket struct {
	filename string
	fileSize int64
	header   []byte
	extended []byte
	eoa      bool
}

// group is the unit of compression: the tar members of one lzip
// member.
type group struct {
	packets  []ipacket
	dataSize int64
}

func (g *group) add(p ipacket) {
	g.packets = append(g.packets, p)
	g.dataSize += int64(len(p.extended)) + BlockSize +
		roundUp(p.fileSize)
	if p.eoa {
		g.dataSize += 2 * BlockSize
	}
}

// Create writes a tar.lz archive with the named files to z.
func Create(z io.Writer, filenames []string, cfg CreateConfig) error {
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		return err
	}
	groups, err := makeGroups(filenames, &cfg)
	if err != nil {
		return err
	}
	if cfg.Workers == 1 || len(groups) < 2 {
		for i := range groups {
			if err := writeMember(z, &groups[i], &cfg); err != nil {
				return err
			}
		}
		return nil
	}
	return createParallel(z, groups, &cfg)
}

// makeGroups walks the inputs, fills headers and extended records and
// splits the tar members into groups according to the solidity
// policy.
func makeGroups(filenames []string, cfg *CreateConfig) ([]group, error) {
	hf := newHeaderFiller(cfg.NumericOwner, cfg.Dereference)
	var groups []group
	cur := &group{}
	var partialDataSize int64

	flush := func() {
		if len(cur.packets) > 0 {
			groups = append(groups, *cur)
			cur = &group{}
		}
	}

	addFile := func(filename string) error {
		extended := NewExtended()
		header := make([]byte, BlockSize)
		fileSize, err := hf.fill(filename, extended, header)
		if err != nil {
			return err
		}
		var eblock []byte
		if !extended.Empty() {
			records, err := extended.Format()
			if err != nil {
				return err
			}
			ehdr := make([]byte, BlockSize)
			initTarHeader(ehdr)
			copy(ehdr[nameO:nameO+nameL-1], extended.Path)
			ehdr[typeflagO] = tfExtended
			printOctal(ehdr[sizeO:sizeO+sizeL-1],
				uint64(extended.edataSize()))
			printOctal(ehdr[chksumO:chksumO+chksumL-1],
				ustarChksum(ehdr))
			eblock = append(ehdr, records...)
		}
		p := ipacket{
			filename: filename,
			fileSize: fileSize,
			header:   header,
			extended: eblock,
		}
		if cfg.Solidity == BSolid &&
			blockFull(int64(len(eblock)), fileSize, cfg.DataSize,
				&partialDataSize) {
			flush()
		}
		cur.add(p)
		if cfg.Solidity == NoSolid {
			flush()
		}
		return nil
	}

	for _, name := range filenames {
		name = filepath.Clean(name)
		info, err := os.Lstat(name)
		if err != nil {
			return nil, fmt.Errorf(
				"tarlz: can't stat input file: %w", err)
		}
		if info.IsDir() && !cfg.NoRecursive {
			err = filepath.WalkDir(name,
				func(path string, d fs.DirEntry, err error) error {
					if err != nil {
						return err
					}
					if path == "." {
						return nil
					}
					return addFile(path)
				})
		} else {
			err = addFile(name)
		}
		if err != nil {
			return nil, err
		}
		if cfg.Solidity == DSolid {
			flush()
		}
	}

	// end-of-archive blocks: part of the single member for Solid,
	// their own member otherwise
	if cfg.Solidity != Solid {
		flush()
	}
	cur.add(ipacket{eoa: true})
	flush()
	return groups, nil
}

// writeMember compresses one group into a single lzip member written
// to z.
func writeMember(z io.Writer, g *group, cfg *CreateConfig) error {
	lw, err := lzip.NewWriterConfig(z, lzip.WriterConfig{
		Level:     cfg.Level,
		ZeroLevel: cfg.ZeroLevel,
		DictSize:  cfg.DictSize,
		SizeHint:  g.dataSize,
	})
	if err != nil {
		return err
	}
	for i := range g.packets {
		if err = writeTarMember(lw, &g.packets[i]); err != nil {
			return err
		}
	}
	return lw.Close()
}

// writeTarMember writes the extended block, the ustar header and the
// padded file data of one tar member.
func writeTarMember(w io.Writer, p *ipacket) error {
	if p.eoa {
		_, err := w.Write(make([]byte, 2*BlockSize))
		return err
	}
	if len(p.extended) > 0 {
		if _, err := w.Write(p.extended); err != nil {
			return err
		}
	}
	if _, err := w.Write(p.header); err != nil {
		return err
	}
	if p.fileSize == 0 {
		return nil
	}
	f, err := os.Open(p.filename)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(w, io.LimitReader(f, p.fileSize))
	if err != nil {
		return err
	}
	if n < p.fileSize {
		return fmt.Errorf("tarlz: file %s shrank while reading",
			p.filename)
	}
	if padding := roundUp(p.fileSize) - p.fileSize; padding > 0 {
		if _, err = w.Write(make([]byte, padding)); err != nil {
			return err
		}
	}
	return nil
}

// createParallel compresses the groups with several workers and
// reassembles the members in input order.
func createParallel(z io.Writer, groups []group, cfg *CreateConfig) error {
	workers := cfg.Workers
	if workers > len(groups) {
		workers = len(groups)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	outCh := make([]chan []byte, len(groups))
	for i := range outCh {
		outCh[i] = make(chan []byte, 1)
	}

	for k := 0; k < workers; k++ {
		k := k
		g.Go(func() error {
			next := k
			defer func() {
				for ; next < len(groups); next += workers {
					close(outCh[next])
				}
			}()
			for ; next < len(groups); next += workers {
				var buf bytes.Buffer
				err := writeMember(&buf, &groups[next], cfg)
				if err != nil {
					return err
				}
				select {
				case outCh[next] <- buf.Bytes():
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	var werr error
	for i := range outCh {
		data, ok := <-outCh[i]
		if !ok || werr != nil {
			continue
		}
		for _, p := range groups[i].packets {
			if p.filename != "" {
				cfg.Logger.Debug().Str("name", p.filename).
					Msg("archived")
			}
		}
		if _, err := z.Write(data); err != nil {
			werr = err
			cancel()
		}
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return werr
}
