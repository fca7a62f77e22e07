// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzip

import (
	"fmt"
	"io"

	"github.com/ulikunitz/lzip/internal/xio"
)

// Block describes an extent of a file, either in the compressed or in
// the uncompressed domain.
type Block struct {
	Pos  int64
	Size int64
}

// End returns the exclusive end offset of the block.
func (b Block) End() int64 { return b.Pos + b.Size }

// Member describes one lzip member of an indexed file. Dblock covers
// the uncompressed extent, Mblock the compressed extent including
// header and trailer.
type Member struct {
	Dblock   Block
	Mblock   Block
	DictSize uint32
}

// IndexError reports why a file could not be indexed. Status
// distinguishes environmental errors from format errors.
type IndexError struct {
	Msg    string
	Status int
}

func (err *IndexError) Error() string { return "lzip: " + err.Msg }

// Index holds the ordered member list of a multimember file. The
// compressed extents cover the interval from zero to the start of the
// trailing data exactly.
type Index struct {
	members  []Member
	insize   int64
	tdataPos int64
	dictSize uint32
}

const boxMagic = "TDATABOX"

// skipBox skips trailing databoxes. Each box ends with a 64-bit
// little-endian size that covers the magic, the data and the size
// field itself.
func skipBox(r io.ReaderAt, pos int64) (int64, error) {
	buf := make([]byte, 8)
	for pos >= 16 {
		if err := xio.ReadAtFull(r, buf, pos-8); err != nil {
			return -1, err
		}
		boxSize := getUint64LE(buf)
		if boxSize > uint64(pos) || boxSize < 16 {
			break
		}
		if err := xio.ReadAtFull(r, buf, pos-int64(boxSize)); err != nil {
			return -1, err
		}
		if string(buf) != boxMagic {
			break
		}
		pos -= int64(boxSize)
	}
	return pos, nil
}

// NewIndex builds the member list of the file by scanning backwards
// from the end.
func NewIndex(r io.ReaderAt, size int64) (*Index, error) {
	idx := &Index{insize: size}
	if size >= HeaderLen {
		hdr := make([]byte, HeaderLen)
		if err := xio.ReadAtFull(r, hdr, 0); err != nil {
			return nil, &IndexError{
				Msg:    "error reading member header: " + err.Error(),
				Status: StatusEnv,
			}
		}
		var h Header
		if err := h.UnmarshalBinary(hdr); err != nil {
			return nil, err
		}
	}
	if size < MinMemberLen {
		msg := "input file is truncated"
		if size == 0 {
			msg = "input file is empty"
		}
		return nil, &IndexError{Msg: msg, Status: StatusData}
	}

	// a trailing databox is skipped before looking for lzip trailers
	pos, err := skipBox(r, size)
	if err != nil {
		return nil, &IndexError{
			Msg:    "error reading databox trailer: " + err.Error(),
			Status: StatusEnv,
		}
	}
	idx.tdataPos = pos

	tbuf := make([]byte, TrailerLen)
	hbuf := make([]byte, HeaderLen)
	for pos >= MinMemberLen {
		if err := xio.ReadAtFull(r, tbuf, pos-TrailerLen); err != nil {
			return nil, &IndexError{
				Msg:    "error reading member trailer: " + err.Error(),
				Status: StatusEnv,
			}
		}
		var t Trailer
		t.UnmarshalBinary(tbuf)
		memberSize := int64(t.MemberSize)
		if t.MemberSize > uint64(pos) || !t.checkConsistency() {
			if len(idx.members) == 0 {
				var ok bool
				pos, ok, err = idx.skipTrailingData(r, pos)
				if err != nil {
					return nil, err
				}
				if ok {
					continue
				}
				return nil, &IndexError{
					Msg:    "can't create file index",
					Status: StatusData,
				}
			}
			return nil, &IndexError{
				Msg: fmt.Sprintf("bad trailer at pos %d",
					pos-TrailerLen),
				Status: StatusData,
			}
		}
		if err := xio.ReadAtFull(r, hbuf, pos-memberSize); err != nil {
			return nil, &IndexError{
				Msg:    "error reading member header: " + err.Error(),
				Status: StatusEnv,
			}
		}
		var h Header
		if err := h.UnmarshalBinary(hbuf); err != nil {
			if len(idx.members) == 0 {
				var ok bool
				pos, ok, err = idx.skipTrailingData(r, pos)
				if err != nil {
					return nil, err
				}
				if ok {
					continue
				}
				return nil, &IndexError{
					Msg:    "can't create file index",
					Status: StatusData,
				}
			}
			return nil, &IndexError{
				Msg: fmt.Sprintf("bad header at pos %d",
					pos-memberSize),
				Status: StatusData,
			}
		}
		pos -= memberSize
		if idx.dictSize < h.DictSize {
			idx.dictSize = h.DictSize
		}
		idx.members = append(idx.members, Member{
			Dblock:   Block{Size: int64(t.DataSize)},
			Mblock:   Block{Pos: pos, Size: memberSize},
			DictSize: h.DictSize,
		})
	}
	if pos != 0 || len(idx.members) == 0 {
		return nil, &IndexError{
			Msg:    "can't create file index",
			Status: StatusData,
		}
	}
	// reverse into file order and make the data blocks cumulative
	for i, j := 0, len(idx.members)-1; i < j; i, j = i+1, j-1 {
		idx.members[i], idx.members[j] = idx.members[j], idx.members[i]
	}
	var dpos int64 = 0
	for i := range idx.members {
		idx.members[i].Dblock.Pos = dpos
		dpos = idx.members[i].Dblock.End()
		if dpos < 0 {
			return nil, &IndexError{
				Msg:    "data in input file is too long (2^63 bytes or more)",
				Status: StatusData,
			}
		}
	}
	return idx, nil
}

// skipTrailingData searches backwards in 16 KiB windows for the
// largest offset holding a consistent trailer whose referenced header
// also validates. On success the found member is pushed and the new
// position returned.
func (idx *Index) skipTrailingData(r io.ReaderAt, pos int64) (newPos int64, ok bool, err error) {
	if pos < MinMemberLen {
		return pos, false, nil
	}
	const blockSize = 16384
	const bufferSize = blockSize + TrailerLen - 1 + HeaderLen
	buffer := make([]byte, bufferSize)
	bsize := int(pos % blockSize) // total bytes in buffer
	if bsize <= bufferSize-blockSize {
		bsize += blockSize
	}
	searchSize := bsize // bytes to search for trailer
	rdSize := bsize     // bytes to read from file
	ipos := pos - int64(rdSize)

	hbuf := make([]byte, HeaderLen)
	for {
		if err := xio.ReadAtFull(r, buffer[:rdSize], ipos); err != nil {
			return pos, false, &IndexError{
				Msg:    "error seeking member trailer: " + err.Error(),
				Status: StatusEnv,
			}
		}
		maxMsb := byte((ipos + int64(searchSize)) >> 56)
		i := searchSize
	search:
		for ; i >= TrailerLen; i-- {
			// prune on the most significant byte of member size
			if buffer[i-1] > maxMsb {
				continue
			}
			var t Trailer
			t.UnmarshalBinary(buffer[i-TrailerLen : i])
			if t.MemberSize == 0 { // skip trailing zeros
				for i > TrailerLen && buffer[i-9] == 0 {
					i--
				}
				continue
			}
			memberSize := int64(t.MemberSize)
			if t.MemberSize > uint64(ipos)+uint64(i) ||
				!t.checkConsistency() {
				continue
			}
			if err := xio.ReadAtFull(r, hbuf,
				ipos+int64(i)-memberSize); err != nil {
				return pos, false, &IndexError{
					Msg:    "error reading member header: " + err.Error(),
					Status: StatusEnv,
				}
			}
			var h Header
			if h.UnmarshalBinary(hbuf) != nil {
				continue search
			}
			// check data following the candidate member
			rest := buffer[i:bsize]
			fullH2 := len(rest) >= HeaderLen
			if checkMagicPrefix(rest) {
				msg := "last member in input file is truncated or corrupt"
				if !fullH2 {
					msg = "last member in input file is truncated"
				}
				return pos, false, &IndexError{
					Msg:    msg,
					Status: StatusData,
				}
			}
			if fullH2 && checkCorruptHeader(rest) {
				return pos, false, &IndexError{
					Msg:    "corrupt header in multimember file",
					Status: StatusData,
				}
			}
			newPos = ipos + int64(i) - memberSize // good member
			if idx.dictSize < h.DictSize {
				idx.dictSize = h.DictSize
			}
			idx.members = append(idx.members, Member{
				Dblock:   Block{Size: int64(t.DataSize)},
				Mblock:   Block{Pos: newPos, Size: memberSize},
				DictSize: h.DictSize,
			})
			idx.tdataPos = newPos + memberSize
			return newPos, true, nil
		}
		if ipos == 0 {
			return pos, false, &IndexError{
				Msg: fmt.Sprintf("bad trailer at pos %d",
					pos-TrailerLen),
				Status: StatusData,
			}
		}
		bsize = bufferSize
		searchSize = bsize - HeaderLen
		rdSize = blockSize
		ipos -= int64(rdSize)
		copy(buffer[rdSize:bufferSize], buffer[:bufferSize-rdSize])
	}
}

// Members returns the number of members in the file.
func (idx *Index) Members() int { return len(idx.members) }

// Member returns the index entry i.
func (idx *Index) Member(i int) Member { return idx.members[i] }

// Mblock returns the compressed extent of member i.
func (idx *Index) Mblock(i int) Block { return idx.members[i].Mblock }

// Dblock returns the uncompressed extent of member i.
func (idx *Index) Dblock(i int) Block { return idx.members[i].Dblock }

// DictSize returns the largest dictionary size across the members.
func (idx *Index) DictSize() uint32 { return idx.dictSize }

// DataSize returns the total uncompressed size of the file.
func (idx *Index) DataSize() int64 {
	if len(idx.members) == 0 {
		return 0
	}
	return idx.members[len(idx.members)-1].Dblock.End()
}

// FileSize returns the size of the indexed file.
func (idx *Index) FileSize() int64 { return idx.insize }

// TDataPos returns the offset where trailing data begins. It equals
// the file size if the file has no trailing data.
func (idx *Index) TDataPos() int64 { return idx.tdataPos }

// TDataSize returns the size of the trailing data including any
// databox framing.
func (idx *Index) TDataSize() int64 { return idx.insize - idx.tdataPos }
