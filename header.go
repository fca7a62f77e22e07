package lzip

import (
	"errors"
	"fmt"

	"github.com/ulikunitz/lzip/lzma"
)

// Sizes of the fixed parts of a member.
const (
	// HeaderLen is the length of the member header.
	HeaderLen = 6
	// TrailerLen is the length of the member trailer.
	TrailerLen = 20
	// MinMemberLen is the length of the smallest possible member.
	MinMemberLen = 36
)

var lzipMagic = [4]byte{'L', 'Z', 'I', 'P'}

var (
	errHeaderMagic = errors.New("lzip: bad magic number (file not in lzip format)")
	errDictSize    = errors.New("lzip: invalid dictionary size in member header")
)

// Header represents the 6-byte member header.
type Header struct {
	Version  byte
	DictSize uint32
}

// headerVersionError supports reporting the unsupported version
// number.
type headerVersionError struct {
	version byte
}

func (err *headerVersionError) Error() string {
	return fmt.Sprintf("lzip: version %d member format not supported",
		err.version)
}

// UnmarshalBinary parses the header and validates magic, version and
// dictionary size.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderLen {
		return errors.New("lzip: header too short")
	}
	if string(data[:4]) != string(lzipMagic[:]) {
		return errHeaderMagic
	}
	h.Version = data[4]
	if h.Version != 1 {
		return &headerVersionError{version: h.Version}
	}
	h.DictSize = decodeDictSize(data[5])
	if !validDictSize(h.DictSize) {
		return errDictSize
	}
	return nil
}

// MarshalBinary returns the 6 header bytes. The dictionary size is
// coded into a single byte; the smallest coded size covering
// h.DictSize is used.
func (h Header) MarshalBinary() (data []byte, err error) {
	if !validDictSize(h.DictSize) {
		return nil, errDictSize
	}
	data = make([]byte, HeaderLen)
	copy(data, lzipMagic[:])
	data[4] = 1
	data[5] = encodeDictSize(h.DictSize)
	return data, nil
}

// checkMagicPrefix reports whether data is a prefix of the magic,
// which detects a truncated header at the end of a file.
func checkMagicPrefix(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	n := len(data)
	if n > 4 {
		n = 4
	}
	return string(data[:n]) == string(lzipMagic[:n])
}

// checkCorruptHeader reports whether data looks like a corrupt magic:
// more than one but not all of the four bytes match.
func checkCorruptHeader(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	matches := 0
	for i := 0; i < 4; i++ {
		if data[i] == lzipMagic[i] {
			matches++
		}
	}
	return matches > 1 && matches < 4
}

func validDictSize(size uint32) bool {
	return lzma.MinDictSize <= size && size <= lzma.MaxDictSize
}

// decodeDictSize computes the dictionary size from the coded byte:
// a power of two reduced by a fraction of up to 7/16.
func decodeDictSize(b byte) uint32 {
	size := uint32(1) << (b & 0x1F)
	if size > lzma.MinDictSize {
		size -= (size / 16) * uint32(b>>5&7)
	}
	return size
}

// encodeDictSize returns the smallest coded byte whose decoded size
// covers the given size. The size must be valid.
func encodeDictSize(size uint32) byte {
	bits := byte(0)
	for v := size - 1; v > 0; v >>= 1 {
		bits++
	}
	b := bits
	if size > lzma.MinDictSize {
		base := uint32(1) << b
		fraction := base / 16
		for i := uint32(7); i >= 1; i-- {
			if base-i*fraction >= size {
				b |= byte(i) << 5
				break
			}
		}
	}
	return b
}

// Trailer represents the 20-byte member trailer.
type Trailer struct {
	CRC        uint32
	DataSize   uint64
	MemberSize uint64
}

// UnmarshalBinary reads the little-endian trailer fields.
func (t *Trailer) UnmarshalBinary(data []byte) error {
	if len(data) < TrailerLen {
		return errors.New("lzip: trailer too short")
	}
	t.CRC = getUint32LE(data)
	t.DataSize = getUint64LE(data[4:])
	t.MemberSize = getUint64LE(data[12:])
	return nil
}

// MarshalBinary returns the 20 trailer bytes.
func (t Trailer) MarshalBinary() (data []byte, err error) {
	data = make([]byte, TrailerLen)
	putUint32LE(data, t.CRC)
	putUint64LE(data[4:], t.DataSize)
	putUint64LE(data[12:], t.MemberSize)
	return data, nil
}

// checkConsistency validates the trailer against the bounds the LZMA
// coding imposes on the ratio of member and data size.
func (t Trailer) checkConsistency() bool {
	if (t.CRC == 0) != (t.DataSize == 0) {
		return false
	}
	if t.MemberSize < MinMemberLen || t.MemberSize >= 1<<63 {
		return false
	}
	mlimit := (9*t.DataSize+7)/8 + MinMemberLen
	if mlimit > t.DataSize && t.MemberSize > mlimit {
		return false
	}
	dlimit := 7090*(t.MemberSize-26) - 1
	if dlimit > t.MemberSize && t.DataSize > dlimit {
		return false
	}
	return true
}

func getUint32LE(b []byte) uint32 {
	x := uint32(b[3]) << 24
	x |= uint32(b[2]) << 16
	x |= uint32(b[1]) << 8
	x |= uint32(b[0])
	return x
}

func getUint64LE(b []byte) uint64 {
	x := uint64(b[7]) << 56
	x |= uint64(b[6]) << 48
	x |= uint64(b[5]) << 40
	x |= uint64(b[4]) << 32
	x |= uint64(b[3]) << 24
	x |= uint64(b[2]) << 16
	x |= uint64(b[1]) << 8
	x |= uint64(b[0])
	return x
}

func putUint32LE(b []byte, x uint32) {
	b[0] = byte(x)
	b[1] = byte(x >> 8)
	b[2] = byte(x >> 16)
	b[3] = byte(x >> 24)
}

func putUint64LE(b []byte, x uint64) {
	b[0] = byte(x)
	b[1] = byte(x >> 8)
	b[2] = byte(x >> 16)
	b[3] = byte(x >> 24)
	b[4] = byte(x >> 32)
	b[5] = byte(x >> 40)
	b[6] = byte(x >> 48)
	b[7] = byte(x >> 56)
}
