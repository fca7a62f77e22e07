package tarlz

import (
	"strings"
	"testing"

	"github.com/kr/pretty"
)

func TestRecordSize(t *testing.T) {
	// prefer "99<97 bytes>" to "100<97 bytes>"
	tests := []struct {
		keyword string
		value   int
		want    int
	}{
		{"path", 1, 9},
		{"path", 91, 101},
		{"uid", 7, 15},
	}
	for _, tc := range tests {
		got := recordSize(len(tc.keyword), tc.value)
		// the record must describe its own length exactly
		digits := decimalDigits(uint64(got))
		if got != digits+1+len(tc.keyword)+1+tc.value+1 {
			t.Errorf("recordSize(%q, %d) = %d is not"+
				" self-consistent", tc.keyword, tc.value, got)
		}
		if tc.want != 0 && got != tc.want {
			t.Errorf("recordSize(%q, %d) = %d; want %d",
				tc.keyword, tc.value, got, tc.want)
		}
	}
}

func TestExtendedFormatParse(t *testing.T) {
	e := NewExtended()
	e.Path = "some/long/path/" + strings.Repeat("x", 120)
	e.Linkpath = "target/of/link"
	e.FileSize = 1 << 34
	e.UID = 1 << 22
	e.GID = 1 << 23
	e.Mtime = SetTime(1<<33+42, 125000000)
	e.Atime = SetTime(1<<33+43, 0)

	block, err := e.Format()
	if err != nil {
		t.Fatalf("Format error %s", err)
	}
	if len(block)%BlockSize != 0 {
		t.Fatalf("block size %d is not a multiple of %d",
			len(block), BlockSize)
	}

	g := NewExtended()
	if err = g.Parse(block[:e.edataSize()], false, nil); err != nil {
		t.Fatalf("Parse error %s", err)
	}
	if !g.CRCPresent {
		t.Fatalf("parsed records have no crc record")
	}
	g.CRCPresent = e.CRCPresent
	g.RemovedPrefix = e.RemovedPrefix
	if *g != *e {
		t.Fatalf("parse(format(e)) differs:\n%s",
			strings.Join(pretty.Diff(e, g), "\n"))
	}
}

func TestExtendedCRCMismatch(t *testing.T) {
	e := NewExtended()
	e.Path = "file.txt"
	e.FileSize = 1 << 33
	block, err := e.Format()
	if err != nil {
		t.Fatalf("Format error %s", err)
	}
	records := block[:e.edataSize()]
	records[8] ^= 0x01 // first byte of the path value
	g := NewExtended()
	if err = g.Parse(records, false, nil); err == nil {
		t.Fatalf("no error for corrupted records")
	}
}

func TestExtendedRedundantRejected(t *testing.T) {
	// a size record that fits the ustar header must be rejected
	rec := "15 size=123456\n"
	g := NewExtended()
	if err := g.Parse([]byte(rec), false, nil); err == nil {
		t.Fatalf("no error for redundant size record")
	}
	// but accepted in permissive mode
	if err := g.Parse([]byte(rec), true, nil); err != nil {
		t.Fatalf("Parse error in permissive mode: %s", err)
	}
	if g.FileSize != 123456 {
		t.Fatalf("file size %d; want 123456", g.FileSize)
	}
}

func TestUnknownKeywordWarnsOnce(t *testing.T) {
	rec := "29 SCHILY.xattr.user.k=value\n"
	var warn []string
	g := NewExtended()
	if err := g.Parse([]byte(rec), false, &warn); err != nil {
		t.Fatalf("Parse error %s", err)
	}
	if err := g.Parse([]byte(rec), false, &warn); err != nil {
		t.Fatalf("Parse error %s", err)
	}
	if len(warn) != 1 {
		t.Fatalf("got %d warnings; want 1", len(warn))
	}
}

func TestEtime(t *testing.T) {
	tests := []struct {
		in   Etime
		want string
	}{
		{SetTime(0, 0), "0"},
		{SetTime(1234567890, 0), "1234567890"},
		{SetTime(1234567890, 5000000), "1234567890.005"},
		{SetTime(-5, 0), "-5"},
	}
	for _, tc := range tests {
		s := tc.in.String()
		if s != tc.want {
			t.Errorf("String() = %q; want %q", s, tc.want)
			continue
		}
		g, err := parseEtime(s)
		if err != nil {
			t.Errorf("parseEtime(%q) error %s", s, err)
			continue
		}
		if g != tc.in {
			t.Errorf("parseEtime(%q) = %+v; want %+v", s, g, tc.in)
		}
	}
}

func TestUstarChksum(t *testing.T) {
	header := make([]byte, BlockSize)
	initTarHeader(header)
	copy(header[nameO:], "test.txt")
	printOctal(header[sizeO:sizeO+sizeL-1], 123)
	printOctal(header[chksumO:chksumO+chksumL-1], ustarChksum(header))
	if !checkUstarChksum(header) {
		t.Fatalf("checksum does not verify")
	}
	header[nameO] ^= 0x20
	if checkUstarChksum(header) {
		t.Fatalf("checksum verifies after corruption")
	}
}
