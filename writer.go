// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzip

import (
	"errors"
	"io"

	"github.com/ulikunitz/lz"
	"github.com/ulikunitz/lzip/lzma"
)

// dictSizes maps the compression levels 0 to 9 to dictionary sizes,
// from fast to slow with increasing compression rate.
var dictSizes = [10]int{
	0: 64 << 10,
	1: 1 << 20,
	2: 3 << 19,
	3: 1 << 21,
	4: 3 << 20,
	5: 1 << 22,
	6: 1 << 23,
	7: 1 << 24,
	8: 3 << 23,
	9: 1 << 25,
}

// WriterConfig provides the parameters for an lzip writer.
type WriterConfig struct {
	// Level selects a compression level between 0 and 9. It picks
	// the dictionary size unless DictSize is set. Default is 6.
	Level int
	// ZeroLevel marks level 0 as intentional.
	ZeroLevel bool

	// DictSize overrides the dictionary size of the level.
	DictSize int

	// SizeHint announces the uncompressed size if known in advance.
	// The dictionary is shrunk to the hint, which reduces the memory
	// required to decompress small files.
	SizeHint int64
	// ZeroSizeHint marks a SizeHint of zero as intentional.
	ZeroSizeHint bool

	// MemberSize limits the size of compressed members. When the
	// limit is reached the writer finishes the member and starts a
	// new one. Default is 2 PiB, effectively unlimited.
	MemberSize int64

	// LZ overrides the sequencer configuration.
	LZ lz.SeqConfig
}

// SetDefaults replaces zero values with default values.
func (cfg *WriterConfig) SetDefaults() {
	if cfg.Level == 0 && !cfg.ZeroLevel {
		cfg.Level = 6
	}
	if cfg.DictSize == 0 && 0 <= cfg.Level && cfg.Level <= 9 {
		cfg.DictSize = dictSizes[cfg.Level]
	}
	if cfg.SizeHint > 0 || cfg.ZeroSizeHint {
		hint := cfg.SizeHint
		if hint < lzma.MinDictSize {
			hint = lzma.MinDictSize
		}
		if int64(cfg.DictSize) > hint {
			cfg.DictSize = int(hint)
		}
	}
	if cfg.MemberSize == 0 {
		cfg.MemberSize = 1 << 51
	}
}

// Verify checks the writer configuration.
func (cfg *WriterConfig) Verify() error {
	if cfg == nil {
		return errors.New("lzip: writer configuration is nil")
	}
	if !(0 <= cfg.Level && cfg.Level <= 9) {
		return errors.New("lzip: compression level out of range")
	}
	if !validDictSize(uint32(cfg.DictSize)) {
		return errors.New("lzip: dictionary size out of range")
	}
	if cfg.MemberSize < MinMemberLen {
		return errors.New("lzip: member size limit too small")
	}
	return nil
}

// Writer compresses a data stream into a sequence of lzip members.
// Close must be called to write the end-of-stream marker and the
// trailer of the last member.
type Writer struct {
	cfg WriterConfig

	z   io.Writer
	w   *lzma.Writer
	err error
}

// NewWriter creates a writer with the default configuration.
func NewWriter(z io.Writer) (*Writer, error) {
	return NewWriterConfig(z, WriterConfig{})
}

// NewWriterConfig creates a writer for the given configuration.
func NewWriterConfig(z io.Writer, cfg WriterConfig) (*Writer, error) {
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	w := &Writer{cfg: cfg, z: z}
	if err := w.startMember(); err != nil {
		return nil, err
	}
	return w, nil
}

// startMember writes the member header and sets up the stream writer.
func (w *Writer) startMember() error {
	h := Header{Version: 1, DictSize: uint32(w.cfg.DictSize)}
	p, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err = w.z.Write(p); err != nil {
		return err
	}
	w.w, err = lzma.NewWriterConfig(w.z, lzma.WriterConfig{
		DictSize: w.cfg.DictSize,
		LZ:       w.cfg.LZ,
	})
	return err
}

// finishMember closes the current member and writes its trailer.
func (w *Writer) finishMember() error {
	if err := w.w.Close(); err != nil {
		return err
	}
	t := Trailer{
		CRC:      w.w.CRC(),
		DataSize: uint64(w.w.DataPos()),
		MemberSize: uint64(w.w.StreamLen()) + HeaderLen +
			TrailerLen,
	}
	p, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.z.Write(p)
	return err
}

// Write compresses the data. A new member is started whenever the
// member size limit is reached.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.err != nil {
		return 0, w.err
	}
	for n < len(p) {
		if w.memberFull() {
			if err = w.finishMember(); err != nil {
				w.err = err
				return n, err
			}
			if err = w.startMember(); err != nil {
				w.err = err
				return n, err
			}
		}
		chunk := p[n:]
		if len(chunk) > 1<<20 {
			chunk = chunk[:1<<20]
		}
		k, err := w.w.Write(chunk)
		n += k
		if err != nil {
			w.err = err
			return n, err
		}
	}
	return n, nil
}

// memberFull reports whether the current member has reached the
// configured member size limit.
func (w *Writer) memberFull() bool {
	return w.w.StreamLen()+HeaderLen+TrailerLen >= w.cfg.MemberSize
}

var errWriterClosed = errors.New("lzip: writer is closed")

// Close finishes the last member. The underlying writer is not
// closed.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if err := w.finishMember(); err != nil {
		w.err = err
		return err
	}
	w.err = errWriterClosed
	return nil
}
