// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzip

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ulikunitz/lzip/internal/xio"
	"github.com/ulikunitz/lzip/lzma"
)

// MemberSelection selects members of an indexed file for the edit
// operations. Ranges select by member index; the flags add damaged
// members, empty members or the trailing data.
type MemberSelection struct {
	// Ranges of member indices, end exclusive.
	Ranges []Block
	// Damaged selects members that do not decode cleanly.
	Damaged bool
	// Empty selects members with zero data size.
	Empty bool
	// TData selects the trailing data.
	TData bool
}

// inRanges reports whether member index i is covered by the ranges.
func (sel *MemberSelection) inRanges(i int) bool {
	for _, b := range sel.Ranges {
		if b.Pos <= int64(i) && int64(i) < b.End() {
			return true
		}
	}
	return false
}

// selected reports whether member i of the indexed file is selected.
// Testing for damage decodes the member.
func (sel *MemberSelection) selected(r io.ReaderAt, idx *Index, i int) bool {
	if sel.inRanges(i) {
		return true
	}
	m := idx.Member(i)
	if sel.Empty && m.Dblock.Size == 0 {
		return true
	}
	if sel.Damaged && memberDamaged(r, m) {
		return true
	}
	return false
}

// memberDamaged decodes the member discarding the output and reports
// whether an error was found.
func memberDamaged(r io.ReaderAt, m Member) bool {
	sr := io.NewSectionReader(r, m.Mblock.Pos+HeaderLen,
		m.Mblock.Size-HeaderLen)
	dec, err := lzma.NewDecoder(sr, m.DictSize, nil)
	if err != nil {
		return true
	}
	if err = dec.Decode(false); err != nil {
		return true
	}
	return verifyTrailer(dec) != nil
}

// Dump copies the selected members and, if selected, the trailing
// data of the indexed file to w. With strip set the selection is
// inverted: everything but the selected parts is copied. Dumping the
// trailing data alone removes the databox framing if the data is
// boxed.
func Dump(w io.Writer, r io.ReaderAt, idx *Index, sel MemberSelection,
	strip bool) error {
	buf := make([]byte, 64<<10)
	dumpedMember := false
	for i := 0; i < idx.Members(); i++ {
		in := sel.selected(r, idx, i)
		if in == strip {
			continue
		}
		m := idx.Mblock(i)
		if err := xio.CopyRange(w, r, m.Pos, m.Size, buf); err != nil {
			return err
		}
		dumpedMember = true
	}
	if sel.TData == strip {
		return nil
	}
	size := idx.TDataSize()
	if size == 0 {
		return nil
	}
	if !strip && !dumpedMember && size >= BoxOverhead {
		// boxed trailing data alone is dumped without framing
		data := make([]byte, size)
		if err := xio.ReadAtFull(r, data, idx.TDataPos()); err != nil {
			return err
		}
		if inner, err := UnwrapBox(data); err == nil {
			_, err = w.Write(inner)
			return err
		}
		_, err := w.Write(data)
		return err
	}
	return xio.CopyRange(w, r, idx.TDataPos(), size, buf)
}

// Remove removes the selected members and, if selected, the trailing
// data from the file in place. The remaining members are moved
// forward and the file is truncated; timestamps are preserved. The
// operation fails without touching the file if the selection is
// empty or selects every member.
func Remove(path string, sel MemberSelection) error {
	times, err := fileTimes(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	idx, err := NewIndex(f, st.Size())
	if err != nil {
		return err
	}
	keep := make([]Block, 0, idx.Members())
	removed := 0
	for i := 0; i < idx.Members(); i++ {
		if sel.selected(f, idx, i) {
			removed++
			continue
		}
		keep = append(keep, idx.Mblock(i))
	}
	if removed == 0 && !(sel.TData && idx.TDataSize() > 0) {
		return errors.New("lzip: no members selected for removal")
	}
	if len(keep) == 0 {
		return errors.New("lzip: cannot remove all members")
	}
	if !sel.TData && idx.TDataSize() > 0 {
		keep = append(keep, Block{Pos: idx.TDataPos(),
			Size: idx.TDataSize()})
	}

	// copy the kept extents forward
	buf := make([]byte, 64<<10)
	var wpos int64
	for _, b := range keep {
		if b.Pos == wpos {
			wpos += b.Size
			continue
		}
		rpos := b.Pos
		size := b.Size
		for size > 0 {
			p := buf
			if size < int64(len(p)) {
				p = p[:size]
			}
			if err = xio.ReadAtFull(f, p, rpos); err != nil {
				return err
			}
			if err = xio.WriteAtFull(f, p, wpos); err != nil {
				return err
			}
			rpos += int64(len(p))
			wpos += int64(len(p))
			size -= int64(len(p))
		}
	}
	if err = f.Truncate(wpos); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return restoreTimes(path, times)
}

// NonzeroRepair rewrites the first LZMA byte of every member whose
// first byte is not zero. This is the only single-byte corruption
// that renders a member undecodable while leaving the trailer
// consistent. It returns the number of repaired members.
func NonzeroRepair(path string) (repaired int, err error) {
	times, err := fileTimes(path)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	idx, err := NewIndex(f, st.Size())
	if err != nil {
		return 0, err
	}
	b := make([]byte, 1)
	for i := 0; i < idx.Members(); i++ {
		pos := idx.Mblock(i).Pos + HeaderLen
		if err = xio.ReadAtFull(f, b, pos); err != nil {
			return repaired, err
		}
		if b[0] == 0 {
			continue
		}
		b[0] = 0
		if err = xio.WriteAtFull(f, b, pos); err != nil {
			return repaired, err
		}
		repaired++
	}
	if err = f.Close(); err != nil {
		return repaired, err
	}
	if repaired > 0 {
		if err = restoreTimes(path, times); err != nil {
			return repaired, err
		}
	}
	return repaired, nil
}

// fileTimes returns the access and modification time of the file.
func fileTimes(path string) ([2]unix.Timespec, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return [2]unix.Timespec{}, fmt.Errorf(
			"lzip: stat %s: %w", path, err)
	}
	return [2]unix.Timespec{
		{Sec: st.Atim.Sec, Nsec: st.Atim.Nsec},
		{Sec: st.Mtim.Sec, Nsec: st.Mtim.Nsec},
	}, nil
}

// restoreTimes restores access and modification time after an edit.
func restoreTimes(path string, times [2]unix.Timespec) error {
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, times[:], 0)
}
