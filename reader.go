// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzip

import (
	"errors"
	"io"

	"github.com/ulikunitz/lzip/lzma"
)

// ReaderConfig provides the parameters for an lzip reader.
type ReaderConfig struct {
	// IgnoreTrailing accepts trailing data after the last member.
	IgnoreTrailing bool
	// LooseTrailing accepts trailing data that resembles a corrupt
	// member header.
	LooseTrailing bool
	// IgnoreNonzero accepts members whose first LZMA byte is not
	// zero.
	IgnoreNonzero bool
}

// Verify checks the reader configuration.
func (cfg *ReaderConfig) Verify() error {
	if cfg == nil {
		return errors.New("lzip: reader configuration is nil")
	}
	return nil
}

// Reader decodes a stream of lzip members serially. The uncompressed
// data of all members is presented as a single stream.
type Reader struct {
	cfg ReaderConfig

	z   io.Reader
	buf buffer
	dec *lzma.Decoder
	err error

	// first reports whether no member has been decoded yet.
	first bool
}

// NewReader creates a reader with the default configuration.
func NewReader(z io.Reader) (*Reader, error) {
	return NewReaderConfig(z, ReaderConfig{IgnoreTrailing: true})
}

// NewReaderConfig creates a reader for the given configuration.
func NewReaderConfig(z io.Reader, cfg ReaderConfig) (*Reader, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return &Reader{cfg: cfg, z: z, first: true}, nil
}

// buffer is a simple draining byte queue for decoded data.
type buffer struct {
	data []byte
	off  int
}

func (b *buffer) Write(p []byte) (n int, err error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *buffer) Read(p []byte) (n int, err error) {
	n = copy(p, b.data[b.off:])
	b.off += n
	if b.off >= len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	}
	return n, nil
}

func (b *buffer) len() int { return len(b.data) - b.off }

// Read reads the decompressed data stream.
func (r *Reader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		if r.buf.len() > 0 {
			k, _ := r.buf.Read(p[n:])
			n += k
			continue
		}
		if r.err != nil {
			return n, r.err
		}
		r.err = r.decodeMember()
		if r.err != nil && n > 0 && r.err != io.EOF {
			// report the error on the next call
			return n, nil
		}
	}
	return n, nil
}

// decodeMember reads one member header, decodes its payload into the
// buffer and verifies the trailer. io.EOF signals a clean end of the
// member stream. Headers after the first member are read through the
// decoder so that buffered stream bytes are not lost.
func (r *Reader) decodeMember() error {
	hdrBuf := make([]byte, HeaderLen)
	var n int
	var err error
	if r.dec == nil {
		n, err = io.ReadFull(r.z, hdrBuf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if n == 0 {
				return errors.New("lzip: input is empty")
			}
			return lzma.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
	} else {
		n = r.dec.ReadData(hdrBuf)
		if n == 0 {
			return io.EOF
		}
		if n < HeaderLen {
			if r.cfg.IgnoreTrailing &&
				!mustRejectTrailing(hdrBuf[:n], r.cfg) {
				return io.EOF
			}
			return lzma.ErrUnexpectedEOF
		}
	}
	var h Header
	if err = h.UnmarshalBinary(hdrBuf); err != nil {
		if !r.first && r.cfg.IgnoreTrailing &&
			!mustRejectTrailing(hdrBuf, r.cfg) {
			return io.EOF
		}
		return err
	}
	if r.dec == nil {
		r.dec, err = lzma.NewDecoder(r.z, h.DictSize, &r.buf)
		if err != nil {
			return err
		}
	} else {
		r.dec.ResetMember(h.DictSize, &r.buf)
	}
	r.first = false
	if err = r.dec.Decode(r.cfg.IgnoreNonzero); err != nil {
		return err
	}
	return verifyTrailer(r.dec)
}

// mustRejectTrailing reports whether trailing data after the last
// member must be treated as an error. Data beginning with the magic
// prefix is always rejected; data resembling a corrupt header is
// rejected unless LooseTrailing is set.
func mustRejectTrailing(data []byte, cfg ReaderConfig) bool {
	if checkMagicPrefix(data) {
		return true
	}
	if !cfg.LooseTrailing && checkCorruptHeader(data) {
		return true
	}
	return false
}

// verifyTrailer reads the 20-byte trailer through the decoder and
// checks all three fields. All mismatches are reported together.
func verifyTrailer(dec *lzma.Decoder) error {
	tbuf := make([]byte, TrailerLen)
	n := dec.ReadData(tbuf)
	terr := &TrailerError{}
	if n < TrailerLen {
		terr.Truncated = true
		for i := n; i < TrailerLen; i++ {
			tbuf[i] = 0
		}
	}
	var t Trailer
	if err := t.UnmarshalBinary(tbuf); err != nil {
		return err
	}
	if t.CRC != dec.CRC() {
		terr.CRCMismatch = true
		terr.StoredCRC = t.CRC
		terr.ComputedCRC = dec.CRC()
	}
	if t.DataSize != uint64(dec.DataPos()) {
		terr.SizeMismatch = true
		terr.StoredSize = t.DataSize
		terr.ComputedSize = uint64(dec.DataPos())
	}
	memberSize := uint64(dec.MemberPos()) + HeaderLen
	if t.MemberSize != memberSize {
		terr.MemberMismatch = true
		terr.StoredMember = t.MemberSize
		terr.ComputedMember = memberSize
	}
	if terr.Truncated || terr.CRCMismatch || terr.SizeMismatch ||
		terr.MemberMismatch {
		return terr
	}
	return nil
}
