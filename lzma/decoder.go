// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzma

import (
	"fmt"
	"io"
)

// Decoder decodes a single raw LZMA stream in the lzip variant and
// writes the uncompressed data to an io.Writer. The caller reads the
// member trailer through ReadData afterwards, so that the consumed
// byte count covers the whole member payload.
type Decoder struct {
	src  byteSource
	rd   rangeDecoder
	dict decoderDict
	s    state
}

// NewDecoder creates a decoder for one member payload. The dictSize
// must be the size announced in the member header. If w is nil the
// output is discarded, which is used for testing member integrity.
func NewDecoder(r io.Reader, dictSize uint32, w io.Writer) (*Decoder, error) {
	if !(MinDictSize <= dictSize && dictSize <= MaxDictSize) {
		return nil, fmt.Errorf("lzma: dictionary size %d out of range",
			dictSize)
	}
	d := new(Decoder)
	d.Reset(r, dictSize, w)
	return d, nil
}

// Reset prepares the decoder for another member read from r. The
// dictionary buffer is reused if the size matches.
func (d *Decoder) Reset(r io.Reader, dictSize uint32, w io.Writer) {
	d.src.init(r)
	d.rd = rangeDecoder{src: &d.src}
	d.dict.init(dictSize, w)
	d.s.reset()
}

// ResetMember prepares the decoder for the next member of the same
// stream. Bytes already buffered from the source are retained and the
// member position counter starts at zero again.
func (d *Decoder) ResetMember(dictSize uint32, w io.Writer) {
	d.src.partialPos = -int64(d.src.pos)
	d.src.truncated = false
	d.rd = rangeDecoder{src: &d.src}
	d.dict.init(dictSize, w)
	d.s.reset()
}

// DataPos returns the number of uncompressed bytes produced.
func (d *Decoder) DataPos() int64 { return d.dict.dataPos() }

// MemberPos returns the number of compressed bytes consumed,
// including trailer bytes read through ReadData.
func (d *Decoder) MemberPos() int64 { return d.src.position() }

// CRC returns the CRC32 of the uncompressed data flushed so far.
func (d *Decoder) CRC() uint32 { return d.dict.CRC() }

// Code returns the final value of the range decoder code. A non-zero
// value after a successful decode indicates corruption in the last
// four bytes of the end-of-stream marker.
func (d *Decoder) Code() uint32 { return d.rd.code }

// Truncated reports whether the decoder ran out of input bytes.
func (d *Decoder) Truncated() bool { return d.src.truncated }

// ReadData reads bytes that follow the LZMA stream, the member
// trailer in particular, from the same buffered source.
func (d *Decoder) ReadData(p []byte) int { return d.src.readData(p) }

// Decode decodes the member payload until the end-of-stream marker.
// It returns nil when the marker was found and the output flushed.
// The error is one of the sentinel errors of this package or an I/O
// error of the underlying reader or writer.
func (d *Decoder) Decode(ignoreNonzero bool) error {
	if ok := d.rd.load(); !ok && !ignoreNonzero {
		return ErrNonzeroFirstByte
	}
	s := &d.s
	for !d.src.finished() {
		if d.src.err != nil {
			return d.src.err
		}
		posState := uint32(d.dict.dataPos()) & posStateMask
		if d.rd.decodeBit(&s.bmMatch[s.st][posState]) == 0 {
			// literal byte
			bm := s.bmLiteral[litState(d.dict.peekPrev())][:]
			var c byte
			if s.isChar() {
				c = byte(d.rd.decodeTree(bm, 8))
			} else {
				c = byte(d.rd.decodeMatched(bm,
					d.dict.peek(s.rep[0])))
			}
			s.updateStateLiteral()
			if err := d.dict.putByte(c); err != nil {
				return err
			}
			continue
		}
		// match or repeated match
		var length uint32
		if d.rd.decodeBit(&s.bmRep[s.st]) != 0 {
			if d.rd.decodeBit(&s.bmRep0[s.st]) == 0 {
				if d.rd.decodeBit(&s.bmLen[s.st][posState]) == 0 {
					s.updateStateShortRep()
					if err := d.dict.putByte(
						d.dict.peek(s.rep[0])); err != nil {
						return err
					}
					continue
				}
			} else {
				var dist uint32
				if d.rd.decodeBit(&s.bmRep1[s.st]) == 0 {
					dist = s.rep[1]
				} else {
					if d.rd.decodeBit(&s.bmRep2[s.st]) == 0 {
						dist = s.rep[2]
					} else {
						dist = s.rep[3]
						s.rep[3] = s.rep[2]
					}
					s.rep[2] = s.rep[1]
				}
				s.rep[1] = s.rep[0]
				s.rep[0] = dist
			}
			s.updateStateRep()
			length = s.repLen.decode(&d.rd, posState)
		} else {
			s.rep[3], s.rep[2], s.rep[1] = s.rep[2], s.rep[1], s.rep[0]
			length = s.matchLen.decode(&d.rd, posState)
			s.rep[0] = s.dist.decode(&d.rd, length-MinMatchLen)
			if s.rep[0] == eosDist { // marker found
				d.rd.normalize()
				if err := d.dict.flushData(); err != nil {
					return err
				}
				if length == MinMatchLen { // end of stream
					return nil
				}
				return ErrUnknownMarker
			}
			s.updateStateMatch()
			if d.dict.distInvalid(s.rep[0]) {
				if err := d.dict.flushData(); err != nil {
					return err
				}
				return ErrDecoder
			}
		}
		if err := d.dict.copyBlock(s.rep[0], length); err != nil {
			return err
		}
	}
	if err := d.dict.flushData(); err != nil {
		return err
	}
	if d.src.err != nil {
		return d.src.err
	}
	return ErrUnexpectedEOF
}
