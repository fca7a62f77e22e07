package lzma

import (
	"fmt"
	"hash/crc32"

	"github.com/ulikunitz/lz"
)

// encoder writes the operations of the compressed stream. It mirrors
// the probability model of the decoder. Match bytes for literal
// encoding are read from the sequencer window.
type encoder struct {
	window *lz.Window
	pos    int64
	s      state
	re     rangeEncoder
	crc    uint32
}

func (e *encoder) init(w *lz.Window) {
	e.window = w
	e.pos = 0
	e.s.reset()
	e.crc = 0
}

func (e *encoder) byteAtEnd(i int64) byte {
	c, _ := e.window.ReadByteAt(e.pos - i)
	return c
}

func (e *encoder) writeLiteral(c byte) error {
	posState := uint32(e.pos) & posStateMask
	if err := e.re.encodeBit(0, &e.s.bmMatch[e.s.st][posState]); err != nil {
		return err
	}
	bm := e.s.bmLiteral[litState(e.byteAtEnd(1))][:]
	var err error
	if e.s.isChar() {
		err = e.re.encodeTree(uint32(c), bm, 8)
	} else {
		match := e.byteAtEnd(int64(e.s.rep[0]) + 1)
		err = e.encodeMatched(bm, c, match)
	}
	if err != nil {
		return err
	}
	e.s.updateStateLiteral()
	e.pos++
	return nil
}

// encodeMatched encodes a literal in the context of the match byte.
func (e *encoder) encodeMatched(bm []prob, c, match byte) error {
	bm1 := bm[0x100:]
	symbol := uint32(1)
	r := uint32(c)
	m := uint32(match)
	for {
		matchBit := (m >> 7) & 1
		m <<= 1
		bit := (r >> 7) & 1
		r <<= 1
		i := matchBit<<8 + symbol
		if err := e.re.encodeBit(bit, &bm1[i]); err != nil {
			return err
		}
		symbol = symbol<<1 | bit
		if matchBit != bit || symbol >= 0x100 {
			break
		}
	}
	for symbol < 0x100 {
		bit := (r >> 7) & 1
		r <<= 1
		if err := e.re.encodeBit(bit, &bm[symbol]); err != nil {
			return err
		}
		symbol = symbol<<1 | bit
	}
	return nil
}

func iverson(f bool) uint32 {
	if f {
		return 1
	}
	return 0
}

// writeMatch writes a match operation. The dist argument is the match
// offset reduced by one. Repeated distances are detected and coded
// through the rep models.
func (e *encoder) writeMatch(dist, matchLen uint32) error {
	if !(MinMatchLen <= matchLen && matchLen <= MaxMatchLen) &&
		!(dist == e.s.rep[0] && matchLen == 1) {
		return fmt.Errorf("lzma: match length %d out of range", matchLen)
	}
	posState := uint32(e.pos) & posStateMask
	if err := e.re.encodeBit(1, &e.s.bmMatch[e.s.st][posState]); err != nil {
		return err
	}
	g := 0
	for ; g < 4; g++ {
		if e.s.rep[g] == dist {
			break
		}
	}
	b := iverson(g < 4)
	if err := e.re.encodeBit(b, &e.s.bmRep[e.s.st]); err != nil {
		return err
	}
	n := matchLen - MinMatchLen
	if b == 0 {
		// fresh match
		e.s.rep[3], e.s.rep[2], e.s.rep[1], e.s.rep[0] =
			e.s.rep[2], e.s.rep[1], e.s.rep[0], dist
		e.s.updateStateMatch()
		if err := e.s.matchLen.encode(&e.re, n, posState); err != nil {
			return err
		}
		if err := e.s.dist.encode(&e.re, dist, n); err != nil {
			return err
		}
		e.pos += int64(matchLen)
		return nil
	}
	b = iverson(g != 0)
	if err := e.re.encodeBit(b, &e.s.bmRep0[e.s.st]); err != nil {
		return err
	}
	if b == 0 {
		b = iverson(matchLen != 1)
		if err := e.re.encodeBit(b, &e.s.bmLen[e.s.st][posState]); err != nil {
			return err
		}
		if b == 0 {
			e.s.updateStateShortRep()
			e.pos++
			return nil
		}
	} else {
		b = iverson(g != 1)
		if err := e.re.encodeBit(b, &e.s.bmRep1[e.s.st]); err != nil {
			return err
		}
		if b == 1 {
			b = iverson(g != 2)
			if err := e.re.encodeBit(b, &e.s.bmRep2[e.s.st]); err != nil {
				return err
			}
			if b == 1 {
				e.s.rep[3] = e.s.rep[2]
			}
			e.s.rep[2] = e.s.rep[1]
		}
		e.s.rep[1] = e.s.rep[0]
		e.s.rep[0] = dist
	}
	e.s.updateStateRep()
	if err := e.s.repLen.encode(&e.re, n, posState); err != nil {
		return err
	}
	e.pos += int64(matchLen)
	return nil
}

// writeEOS writes the end-of-stream marker, a match with the marker
// distance and the minimum match length.
func (e *encoder) writeEOS() error {
	posState := uint32(e.pos) & posStateMask
	if err := e.re.encodeBit(1, &e.s.bmMatch[e.s.st][posState]); err != nil {
		return err
	}
	if err := e.re.encodeBit(0, &e.s.bmRep[e.s.st]); err != nil {
		return err
	}
	e.s.updateStateMatch()
	if err := e.s.matchLen.encode(&e.re, 0, posState); err != nil {
		return err
	}
	return e.s.dist.encode(&e.re, eosDist, 0)
}

// updateCRC accounts compressed input data for the member trailer.
func (e *encoder) updateCRC(p []byte) {
	e.crc = crc32.Update(e.crc, crc32.IEEETable, p)
}
