// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzma

import (
	"bufio"
	"errors"
	"io"

	"github.com/ulikunitz/lz"
)

// WriterConfig provides the parameters for a raw LZMA stream writer.
type WriterConfig struct {
	// DictSize is the dictionary size announced in the lzip member
	// header. It bounds the window of the LZ sequencer.
	DictSize int

	// LZ configures the sequencer used for match finding. If nil a
	// double-hash sequencer with the dictionary size as window is
	// used.
	LZ lz.SeqConfig
}

// SetDefaults replaces zero values with default values.
func (cfg *WriterConfig) SetDefaults() {
	if cfg.DictSize == 0 {
		cfg.DictSize = 8 << 20
	}
	if cfg.LZ == nil {
		cfg.LZ = &lz.DHSConfig{WindowSize: cfg.DictSize}
	} else {
		bc := cfg.LZ.BufConfig()
		bc.WindowSize = cfg.DictSize
		cfg.LZ.SetBufConfig(bc)
	}
	cfg.LZ.SetDefaults()
	bc := cfg.LZ.BufConfig()
	bc.WindowSize = cfg.DictSize
	bc.ShrinkSize = bc.WindowSize
	bc.BufferSize = 2 * bc.WindowSize
	const minBufferSize = 256 << 10
	if bc.BufferSize < minBufferSize {
		bc.BufferSize = minBufferSize
	}
	cfg.LZ.SetBufConfig(bc)
}

// Verify checks the configuration for consistency.
func (cfg *WriterConfig) Verify() error {
	if cfg == nil {
		return errors.New("lzma: writer configuration is nil")
	}
	if !(MinDictSize <= cfg.DictSize && cfg.DictSize <= MaxDictSize) {
		return errors.New("lzma: dictionary size out of range")
	}
	if cfg.LZ == nil {
		return errors.New("lzma: no sequencer configuration")
	}
	return cfg.LZ.Verify()
}

// Writer compresses data into a single raw LZMA stream. Close writes
// the end-of-stream marker and flushes the range encoder; it doesn't
// touch the underlying writer otherwise.
type Writer struct {
	enc encoder
	bw  *bufio.Writer
	seq lz.Sequencer
	blk lz.Block
	err error
}

// NewWriterConfig creates a raw stream writer for the configuration.
func NewWriterConfig(z io.Writer, cfg WriterConfig) (*Writer, error) {
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	seq, err := cfg.LZ.NewSequencer()
	if err != nil {
		return nil, err
	}
	w := &Writer{
		seq: seq,
		bw:  bufio.NewWriter(z),
	}
	if err = seq.WindowPtr().Reset(nil); err != nil {
		return nil, err
	}
	w.enc.init(seq.WindowPtr())
	w.enc.re.init(w.bw)
	return w, nil
}

// DataPos returns the number of uncompressed bytes consumed.
func (w *Writer) DataPos() int64 { return w.enc.pos }

// CRC returns the CRC32 of the data written so far.
func (w *Writer) CRC() uint32 { return w.enc.crc }

// StreamLen returns the length the compressed stream will have after
// Close, in bytes. The leading zero byte of the stream is the initial
// cache byte of the range encoder.
func (w *Writer) StreamLen() int64 {
	if w.err == errClosed {
		return w.enc.re.n
	}
	return w.enc.re.len()
}

var errEmpty = errors.New("lzma: no data to sequence")

// encodeBlock sequences buffered window data and writes the resulting
// operations. Long matches are split into chunks of at most
// MaxMatchLen bytes.
func (w *Writer) encodeBlock() error {
	_, err := w.seq.Sequence(&w.blk, 0)
	if err != nil {
		if err == lz.ErrEmptyBuffer {
			return errEmpty
		}
		return err
	}
	litIndex := 0
	for _, s := range w.blk.Sequences {
		i := litIndex
		litIndex += int(s.LitLen)
		for _, c := range w.blk.Literals[i:litIndex] {
			if err = w.enc.writeLiteral(c); err != nil {
				return err
			}
		}
		o, m := s.Offset-1, s.MatchLen
		for m > 0 {
			var u uint32
			switch {
			case m <= MaxMatchLen:
				u = m
			case m >= MaxMatchLen+MinMatchLen:
				u = MaxMatchLen
			default:
				u = m - MinMatchLen
			}
			if err = w.enc.writeMatch(o, u); err != nil {
				return err
			}
			m -= u
		}
	}
	for _, c := range w.blk.Literals[litIndex:] {
		if err = w.enc.writeLiteral(c); err != nil {
			return err
		}
	}
	w.blk.Sequences = w.blk.Sequences[:0]
	w.blk.Literals = w.blk.Literals[:0]
	return nil
}

// Write moves data into the sequencer window and compresses it block
// by block.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.err != nil {
		return 0, w.err
	}
	window := w.seq.WindowPtr()
	for {
		k, err := window.Write(p[n:])
		n += k
		if err == nil {
			break
		}
		if err != lz.ErrFullBuffer {
			w.err = err
			return n, err
		}
		if err = w.encodeBlock(); err != nil && err != errEmpty {
			w.err = err
			return n, err
		}
	}
	w.enc.updateCRC(p[:n])
	return n, nil
}

var errClosed = errors.New("lzma: writer is closed")

// Close compresses the remaining buffered data, writes the
// end-of-stream marker and flushes everything to the underlying
// writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	for {
		err := w.encodeBlock()
		if err == errEmpty {
			break
		}
		if err != nil {
			w.err = err
			return err
		}
	}
	if err := w.enc.writeEOS(); err != nil {
		w.err = err
		return err
	}
	if err := w.enc.re.close(); err != nil {
		w.err = err
		return err
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
		return err
	}
	w.err = errClosed
	return nil
}
