// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarlz

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ulikunitz/lzip"
)

// DecodeConfig provides the parameters for listing and extraction.
type DecodeConfig struct {
	// Workers is the number of decoding goroutines for indexed
	// archives. Default is the number of CPUs.
	Workers int

	// Permissive accepts duplicate and redundant extended records.
	Permissive bool

	// Logger receives warnings and per-member diagnostics.
	Logger zerolog.Logger
}

// Entry describes one tar member of the archive.
type Entry struct {
	Extended *Extended
	Typeflag byte
	Header   []byte
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.Typeflag == tfDirectory }

// DataSize returns the size of the file data following the header.
func (e *Entry) DataSize() int64 {
	if e.Typeflag == tfRegular || e.Typeflag == tfHiperf {
		return e.Extended.FileSize
	}
	return 0
}

// entryFunc processes one entry and must consume or skip its data.
type entryFunc func(e *Entry, ar archiveReader) error

// parseArchive reads tar members from ar and calls visit for each.
// With recoverable set, a bad header checksum skips forward block by
// block to the next valid header, with a single warning per call.
func parseArchive(ar archiveReader, cfg *DecodeConfig, recoverable bool,
	visit entryFunc) error {
	header := make([]byte, BlockSize)
	warned := false
	for {
		if ar.atMemberEnd() {
			return nil
		}
		if err := ar.read(header); err != nil {
			if err == errUnexpectedArchiveEOF {
				return errors.New(
					"tarlz: archive ends unexpectedly")
			}
			return err
		}
		if blockIsZero(header) {
			// end of archive is two zero blocks
			if ar.atMemberEnd() {
				return nil
			}
			if err := ar.read(header); err != nil {
				return err
			}
			if blockIsZero(header) {
				return nil
			}
			return errors.New("tarlz: corrupt end-of-archive blocks")
		}
		if !checkUstarChksum(header) {
			if !recoverable {
				return errors.New("tarlz: corrupt or invalid tar header")
			}
			if !warned {
				warned = true
				cfg.Logger.Warn().Msg("corrupt tar header;" +
					" skipping to next header")
			}
			continue
		}
		extended := NewExtended()
		typeflag := header[typeflagO]
		for typeflag == tfExtended || typeflag == tfGlobal {
			edsize := int64(parseOctal(header[sizeO : sizeO+sizeL]))
			if edsize <= 0 || edsize > MaxEdataSize {
				return errors.New(
					"tarlz: invalid extended-records size")
			}
			records := make([]byte, roundUp(edsize))
			if err := ar.read(records); err != nil {
				return err
			}
			if typeflag == tfExtended {
				var warn []string
				err := extended.Parse(records[:edsize],
					cfg.Permissive, &warn)
				for _, w := range warn {
					cfg.Logger.Warn().Msg(w)
				}
				if err != nil {
					return err
				}
			}
			if err := ar.read(header); err != nil {
				return err
			}
			if !checkUstarChksum(header) {
				return errors.New(
					"tarlz: corrupt header after extended records")
			}
			typeflag = header[typeflagO]
		}
		extended.FillFromUstar(header)
		e := &Entry{
			Extended: extended,
			Typeflag: typeflag,
			Header:   append([]byte(nil), header...),
		}
		if err := visit(e, ar); err != nil {
			return err
		}
	}
}

// skipData discards the padded file data of the entry.
func skipData(e *Entry, ar archiveReader) error {
	return ar.skip(roundUp(e.DataSize()))
}

// makeVisitFunc builds the entry visitor for a worker. Lines passed
// to emit are diagnostics or listing output; the parallel decoder
// prints them in member order.
type makeVisitFunc func(worker int, emit func(string)) entryFunc

// List writes the paths of the archive members to w. The archive
// stream must be the uncompressed tar stream; use ListFile for tar.lz
// files.
func List(w io.Writer, r io.Reader, cfg DecodeConfig) error {
	ar := newSerialReader(r)
	visit := listVisitor(0, lineWriter(w))
	return parseArchive(ar, &cfg, true, visit)
}

func lineWriter(w io.Writer) func(string) {
	return func(line string) { fmt.Fprintln(w, line) }
}

// ListFile lists the named tar.lz archive. Indexed archives with more
// than one member are listed in parallel.
func ListFile(w io.Writer, path string, cfg DecodeConfig) error {
	return decodeFile(path, &cfg, func(worker int, emit func(string)) entryFunc {
		return listVisitor(worker, emit)
	}, lineWriter(w))
}

func listVisitor(worker int, emit func(string)) entryFunc {
	return func(e *Entry, ar archiveReader) error {
		emit(e.Extended.Path)
		return skipData(e, ar)
	}
}

// Extract extracts the archive stream below dir.
func Extract(dir string, r io.Reader, cfg DecodeConfig) error {
	x := &extractor{dir: dir, cfg: &cfg}
	ar := newSerialReader(r)
	warn := func(line string) { cfg.Logger.Warn().Msg(line) }
	return parseArchive(ar, &cfg, true, x.visitWith(0, warn))
}

// ExtractFile extracts the named tar.lz archive below dir, decoding
// indexed archives in parallel.
func ExtractFile(dir, path string, cfg DecodeConfig) error {
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	x := &extractor{dir: dir, cfg: &cfg, nm: newNameMonitor(workers)}
	warn := func(line string) { cfg.Logger.Warn().Msg(line) }
	return decodeFile(path, &cfg, func(worker int, emit func(string)) entryFunc {
		return x.visitWith(worker, emit)
	}, warn)
}

// extractor writes archive entries into the filesystem.
type extractor struct {
	dir string
	cfg *DecodeConfig

	// nm is set by the parallel decoder
	nm *nameMonitor
}

// visitWith binds the extraction visitor to a worker and a
// diagnostics sink.
func (x *extractor) visitWith(worker int, emit func(string)) entryFunc {
	return func(e *Entry, ar archiveReader) error {
		return x.visit(e, ar, worker, emit)
	}
}

func (x *extractor) visit(e *Entry, ar archiveReader, worker int,
	emit func(string)) error {
	path := e.Extended.Path
	if path == "" || containsDotDot(path) {
		emit("skipping unsafe member name " + path)
		return skipData(e, ar)
	}
	if x.nm != nil && !x.nm.reserve(worker, path) {
		// another worker is extracting the same path
		emit("skipping duplicate member " + path)
		return skipData(e, ar)
	}
	out := filepath.Join(x.dir, path)
	mode := os.FileMode(parseOctal(e.Header[modeO:modeO+modeL]) & 0o7777)
	switch e.Typeflag {
	case tfRegular, tfHiperf:
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(out,
			os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		size := e.DataSize()
		if err = copyData(f, ar, size); err != nil {
			f.Close()
			return err
		}
		if err = f.Close(); err != nil {
			return err
		}
		if padding := roundUp(size) - size; padding > 0 {
			if err = ar.skip(padding); err != nil {
				return err
			}
		}
		mt := e.Extended.Mtime
		if mt.Valid() {
			t := time.Unix(mt.Sec(), int64(mt.Nsec()))
			if err := os.Chtimes(out, t, t); err != nil {
				return err
			}
		}
		return nil
	case tfDirectory:
		return os.MkdirAll(out, mode|0o100)
	case tfSymlink:
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		os.Remove(out)
		return os.Symlink(e.Extended.Linkpath, out)
	case tfLink:
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		os.Remove(out)
		return os.Link(filepath.Join(x.dir, e.Extended.Linkpath), out)
	default:
		// devices, fifos and unknown types are not extracted
		emit(fmt.Sprintf("skipping special member %s (type %c)",
			path, e.Typeflag))
		return skipData(e, ar)
	}
}

// copyData copies size bytes of file data from the archive to w.
func copyData(w io.Writer, ar archiveReader, size int64) error {
	buf := make([]byte, 64<<10)
	for size > 0 {
		p := buf
		if size < int64(len(p)) {
			p = p[:size]
		}
		if err := ar.read(p); err != nil {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
		size -= int64(len(p))
	}
	return nil
}

// containsDotDot reports whether the path contains a ".." component.
func containsDotDot(path string) bool {
	for _, c := range strings.Split(path, "/") {
		if c == ".." {
			return true
		}
	}
	return false
}

// decodeFile opens the archive, tries to index it and runs either the
// parallel or the serial decoder.
func decodeFile(path string, cfg *DecodeConfig, makeVisit makeVisitFunc,
	emit func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	idx, err := lzip.NewIndex(f, st.Size())
	if err != nil {
		// fall back to the serial stream decoder
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return serr
		}
		lr, lerr := lzip.NewReader(f)
		if lerr != nil {
			return lerr
		}
		ar := newSerialReader(lr)
		return parseArchive(ar, cfg, true, makeVisit(0, emit))
	}
	return decodeIndexed(f, idx, cfg, makeVisit, emit)
}
