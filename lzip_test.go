// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lzip

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io"
	"math/rand"
	"testing"

	"github.com/ulikunitz/lzip/lzma"
)

// compress compresses data with the given configuration.
func compress(t *testing.T, data []byte, cfg WriterConfig) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriterConfig(&buf, cfg)
	if err != nil {
		t.Fatalf("NewWriterConfig error %s", err)
	}
	if _, err = w.Write(data); err != nil {
		t.Fatalf("Write error %s", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("Close error %s", err)
	}
	return buf.Bytes()
}

// decompress decodes a complete lzip stream.
func decompress(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader error %s", err)
	}
	var buf bytes.Buffer
	if _, err = io.Copy(&buf, r); err != nil {
		t.Fatalf("io.Copy error %s", err)
	}
	return buf.Bytes()
}

func TestEmptyMember(t *testing.T) {
	data := compress(t, nil, WriterConfig{
		Level: 0, ZeroLevel: true, SizeHint: 0, ZeroSizeHint: true})
	if len(data) < MinMemberLen {
		t.Fatalf("member has %d bytes; want at least %d",
			len(data), MinMemberLen)
	}
	if string(data[:4]) != "LZIP" {
		t.Fatalf("bad magic %q", data[:4])
	}
	if data[4] != 1 {
		t.Fatalf("version %d; want 1", data[4])
	}
	if data[5] != 0x0C {
		t.Fatalf("coded dict size %#02x; want 0x0c", data[5])
	}
	var trailer Trailer
	if err := trailer.UnmarshalBinary(data[len(data)-TrailerLen:]); err != nil {
		t.Fatalf("trailer error %s", err)
	}
	if trailer.CRC != 0 {
		t.Fatalf("trailer CRC %#08x; want 0", trailer.CRC)
	}
	if trailer.DataSize != 0 {
		t.Fatalf("trailer data size %d; want 0", trailer.DataSize)
	}
	if trailer.MemberSize != uint64(len(data)) {
		t.Fatalf("trailer member size %d; want %d",
			trailer.MemberSize, len(data))
	}
	if !trailer.checkConsistency() {
		t.Fatalf("trailer is inconsistent")
	}
	if out := decompress(t, data); len(out) != 0 {
		t.Fatalf("decompressed %d bytes; want 0", len(out))
	}
}

func TestHelloRoundTrip(t *testing.T) {
	const text = "hello, world!\n"
	data := compress(t, []byte(text), WriterConfig{Level: 6})
	var trailer Trailer
	if err := trailer.UnmarshalBinary(data[len(data)-TrailerLen:]); err != nil {
		t.Fatalf("trailer error %s", err)
	}
	if want := crc32.ChecksumIEEE([]byte(text)); trailer.CRC != want {
		t.Fatalf("trailer CRC %#08x; want %#08x", trailer.CRC, want)
	}
	if trailer.DataSize != uint64(len(text)) {
		t.Fatalf("trailer data size %d; want %d", trailer.DataSize,
			len(text))
	}
	if out := decompress(t, data); string(out) != text {
		t.Fatalf("decompressed %q; want %q", out, text)
	}
}

func TestRoundTripLevels(t *testing.T) {
	rnd := rand.New(rand.NewSource(41))
	data := make([]byte, 1<<18)
	// compressible data: random bytes with repeated runs
	for i := 0; i < len(data); {
		n := 16 + rnd.Intn(240)
		c := byte(rnd.Intn(256))
		for j := 0; j < n && i < len(data); j++ {
			data[i] = c + byte(j&3)
			i++
		}
	}
	for level := 0; level <= 9; level++ {
		z := compress(t, data, WriterConfig{
			Level: level, ZeroLevel: level == 0,
			SizeHint: int64(len(data))})
		out := decompress(t, z)
		if !bytes.Equal(out, data) {
			t.Fatalf("level %d: round trip mismatch", level)
		}
	}
}

func TestCatenation(t *testing.T) {
	a := []byte("first member data\n")
	b := []byte("second member data\n")
	za := compress(t, a, WriterConfig{SizeHint: int64(len(a))})
	zb := compress(t, b, WriterConfig{SizeHint: int64(len(b))})
	z := append(append([]byte(nil), za...), zb...)
	out := decompress(t, z)
	want := append(append([]byte(nil), a...), b...)
	if !bytes.Equal(out, want) {
		t.Fatalf("catenation: got %q; want %q", out, want)
	}
	idx, err := NewIndex(bytes.NewReader(z), int64(len(z)))
	if err != nil {
		t.Fatalf("NewIndex error %s", err)
	}
	if idx.Members() != 2 {
		t.Fatalf("index has %d members; want 2", idx.Members())
	}
	if m := idx.Mblock(0); m.Pos != 0 || m.Size != int64(len(za)) {
		t.Fatalf("mblock(0) = %+v; want {0 %d}", m, len(za))
	}
	if m := idx.Mblock(1); m.Pos != int64(len(za)) ||
		m.Size != int64(len(zb)) {
		t.Fatalf("mblock(1) = %+v; want {%d %d}", m, len(za), len(zb))
	}
}

func TestIndexMonotonicity(t *testing.T) {
	var z []byte
	var members int
	rnd := rand.New(rand.NewSource(43))
	for i := 0; i < 5; i++ {
		data := make([]byte, 100+rnd.Intn(10000))
		rnd.Read(data)
		z = append(z, compress(t, data,
			WriterConfig{SizeHint: int64(len(data))})...)
		members++
	}
	idx, err := NewIndex(bytes.NewReader(z), int64(len(z)))
	if err != nil {
		t.Fatalf("NewIndex error %s", err)
	}
	if idx.Members() != members {
		t.Fatalf("index has %d members; want %d", idx.Members(),
			members)
	}
	var msum int64
	for i := 0; i < idx.Members(); i++ {
		if i+1 < idx.Members() {
			if idx.Dblock(i).End() != idx.Dblock(i+1).Pos {
				t.Fatalf("dblock(%d).End() != dblock(%d).Pos",
					i, i+1)
			}
			if idx.Mblock(i).End() != idx.Mblock(i+1).Pos {
				t.Fatalf("mblock(%d).End() != mblock(%d).Pos",
					i, i+1)
			}
		}
		msum += idx.Mblock(i).Size
	}
	if msum != int64(len(z)) {
		t.Fatalf("member sizes sum to %d; want %d", msum, len(z))
	}
}

func TestDataboxTransparency(t *testing.T) {
	a := []byte("data protected by the box test\n")
	za := compress(t, a, WriterConfig{SizeHint: int64(len(a))})
	tdata := []byte("trailing data that contains the letters LZIP somewhere")
	z := append(append([]byte(nil), za...), WrapBox(tdata)...)

	idx, err := NewIndex(bytes.NewReader(z), int64(len(z)))
	if err != nil {
		t.Fatalf("NewIndex error %s", err)
	}
	if idx.Members() != 1 {
		t.Fatalf("index has %d members; want 1", idx.Members())
	}
	if idx.TDataPos() != int64(len(za)) {
		t.Fatalf("tdata pos %d; want %d", idx.TDataPos(), len(za))
	}

	inner, err := UnwrapBox(WrapBox(tdata))
	if err != nil {
		t.Fatalf("UnwrapBox error %s", err)
	}
	if !bytes.Equal(inner, tdata) {
		t.Fatalf("UnwrapBox: got %q; want %q", inner, tdata)
	}
}

func TestIndexTrailingGarbage(t *testing.T) {
	a := []byte("valid member followed by garbage\n")
	za := compress(t, a, WriterConfig{SizeHint: int64(len(a))})
	garbage := []byte("garbage bytes that contain the letters LZIP somewhere")
	z := append(append([]byte(nil), za...), garbage...)

	idx, err := NewIndex(bytes.NewReader(z), int64(len(z)))
	if err != nil {
		var ierr *IndexError
		if !errors.As(err, &ierr) {
			t.Fatalf("NewIndex error %s; want IndexError", err)
		}
		return
	}
	// skip-trailing-data succeeded; the index must not contain a
	// fictitious member
	if idx.Members() != 1 {
		t.Fatalf("index has %d members; want 1", idx.Members())
	}
	if idx.Mblock(0).Size != int64(len(za)) {
		t.Fatalf("member size %d; want %d", idx.Mblock(0).Size,
			len(za))
	}
}

func TestTruncatedMember(t *testing.T) {
	data := []byte("data for the truncation test: aaaaaaaaaaaaaaaaaa\n")
	z := compress(t, data, WriterConfig{SizeHint: int64(len(data))})
	r, err := NewReader(bytes.NewReader(z[:len(z)-1]))
	if err != nil {
		t.Fatalf("NewReader error %s", err)
	}
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	if err == nil {
		t.Fatalf("no error for truncated member")
	}
	var terr *TrailerError
	if !errors.As(err, &terr) && !errors.Is(err, lzma.ErrUnexpectedEOF) {
		t.Fatalf("error %s; want trailer error or unexpected EOF", err)
	}
	if !bytes.Equal(buf.Bytes(), data[:buf.Len()]) {
		t.Fatalf("output is not a prefix of the original data")
	}
}

func TestParallelDecode(t *testing.T) {
	rnd := rand.New(rand.NewSource(47))
	sizes := []int{1000, 500, 1000}
	var z []byte
	var want []byte
	for _, n := range sizes {
		data := make([]byte, n)
		rnd.Read(data)
		want = append(want, data...)
		z = append(z, compress(t, data,
			WriterConfig{SizeHint: int64(n)})...)
	}
	idx, err := NewIndex(bytes.NewReader(z), int64(len(z)))
	if err != nil {
		t.Fatalf("NewIndex error %s", err)
	}
	if idx.Members() != 3 {
		t.Fatalf("index has %d members; want 3", idx.Members())
	}
	for _, workers := range []int{1, 2, 3, 8} {
		var buf bytes.Buffer
		err = DecodeParallel(&buf, bytes.NewReader(z), idx, workers,
			ReaderConfig{})
		if err != nil {
			t.Fatalf("workers=%d: DecodeParallel error %s",
				workers, err)
		}
		if !bytes.Equal(buf.Bytes(), want) {
			t.Fatalf("workers=%d: output mismatch", workers)
		}
	}
}

func TestMultiMemberWriter(t *testing.T) {
	rnd := rand.New(rand.NewSource(53))
	data := make([]byte, 1<<16)
	rnd.Read(data)
	var buf bytes.Buffer
	w, err := NewWriterConfig(&buf, WriterConfig{MemberSize: 4096})
	if err != nil {
		t.Fatalf("NewWriterConfig error %s", err)
	}
	if _, err = w.Write(data); err != nil {
		t.Fatalf("Write error %s", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("Close error %s", err)
	}
	z := buf.Bytes()
	idx, err := NewIndex(bytes.NewReader(z), int64(len(z)))
	if err != nil {
		t.Fatalf("NewIndex error %s", err)
	}
	if idx.Members() < 2 {
		t.Fatalf("index has %d members; want at least 2",
			idx.Members())
	}
	if out := decompress(t, z); !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDictSizeCoding(t *testing.T) {
	tests := []uint32{
		1 << 12, 1 << 16, 3 << 15, 1 << 20, 5 << 18, 1 << 23,
		1 << 25, 1 << 29,
	}
	for _, size := range tests {
		b := encodeDictSize(size)
		d := decodeDictSize(b)
		if d < size {
			t.Errorf("size %d: coded byte %#02x decodes to %d",
				size, b, d)
		}
		if !validDictSize(d) {
			t.Errorf("size %d: decoded size %d invalid", size, d)
		}
	}
	if b := encodeDictSize(1 << 12); b != 0x0C {
		t.Errorf("encodeDictSize(4096) = %#02x; want 0x0c", b)
	}
}
