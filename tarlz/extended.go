package tarlz

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"sync"
)

// MaxEdataSize limits the size of an extended-records block to 1 GiB.
const MaxEdataSize = (1 << 21) * BlockSize

// MaxFileSize is the largest file size the format can store.
const MaxFileSize = 1<<63 - 1 - BlockSize

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// windowedCRC32C computes the CRC32-C of buf with an 8-byte window at
// pos excluded. It implements the checksum of the crc record, whose
// stored hex digits are conceptually zero.
func windowedCRC32C(buf []byte, pos int) uint32 {
	crc := crc32.Update(0, crc32cTable, buf[:pos])
	return crc32.Update(crc, crc32cTable, buf[pos+8:])
}

// crcRecord is the fixed-size record carrying the CRC32-C of the
// whole extended-records block.
const crcRecord = "22 GNU.crc32=00000000\n"

// Etime is a file time in extended records: seconds since the epoch
// plus nanoseconds. The zero value is invalid; use SetTime.
type Etime struct {
	sec   int64
	nsec  int32
	valid bool
}

// SetTime makes a valid Etime from seconds and nanoseconds.
func SetTime(sec int64, nsec int) Etime {
	if nsec < 0 || nsec > 999999999 {
		nsec = 0
	}
	return Etime{sec: sec, nsec: int32(nsec), valid: true}
}

// Valid reports whether the time has been set.
func (t Etime) Valid() bool { return t.valid }

// Sec returns the seconds since the epoch.
func (t Etime) Sec() int64 { return t.sec }

// Nsec returns the nanosecond part.
func (t Etime) Nsec() int { return int(t.nsec) }

// outOfUstarRange reports whether the time needs an extended record.
func (t Etime) outOfUstarRange() bool {
	return t.Valid() && !timeInUstarRange(t.sec)
}

// String formats the time the way pax time records store it:
// decimal seconds with an optional fraction without trailing zeros.
func (t Etime) String() string {
	s := strconv.FormatInt(t.sec, 10)
	if t.nsec > 0 {
		frac := fmt.Sprintf("%09d", t.nsec)
		frac = strings.TrimRight(frac, "0")
		s += "." + frac
	}
	return s
}

// parseEtime parses a pax time value.
func parseEtime(s string) (t Etime, err error) {
	intpart := s
	var frac string
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intpart, frac = s[:i], s[i+1:]
	}
	sec, err := strconv.ParseInt(intpart, 10, 64)
	if err != nil {
		return Etime{}, errors.New("tarlz: bad time record")
	}
	nsec := 0
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		for len(frac) < 9 {
			frac += "0"
		}
		nsec, err = strconv.Atoi(frac)
		if err != nil {
			return Etime{}, errors.New("tarlz: bad time record")
		}
	}
	return SetTime(sec, nsec), nil
}

// Extended stores the metadata carried in extended records that does
// not fit the ustar header.
type Extended struct {
	Linkpath string
	Path     string
	FileSize int64
	UID      int64
	GID      int64
	Atime    Etime
	Mtime    Etime

	// CRCPresent reports that a crc record was parsed or formatted.
	CRCPresent bool

	// RemovedPrefix is the leading "./" or "/" prefix removed from
	// the path records.
	RemovedPrefix string
}

// Reset restores the zero state. UID and GID are -1 when unset.
func (e *Extended) Reset() {
	*e = Extended{UID: -1, GID: -1}
}

// NewExtended returns an Extended with unset uid and gid.
func NewExtended() *Extended {
	e := new(Extended)
	e.Reset()
	return e
}

// removeLeadingDotSlash removes leading "./" and "/" components from
// the name and records the removed prefix.
func removeLeadingDotSlash(name string) (clean, prefix string) {
	i := 0
	for i < len(name) {
		if name[i] == '/' {
			i++
			continue
		}
		if name[i] == '.' && i+1 < len(name) && name[i+1] == '/' {
			i += 2
			continue
		}
		break
	}
	return name[i:], name[:i]
}

// stripTrailingSlashes removes trailing slashes but keeps a root
// slash.
func stripTrailingSlashes(s string) string {
	for len(s) > 1 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// recordSize returns the length of a record for the given keyword and
// value sizes, choosing the minimal length that satisfies
// len == digits(len) + len(" keyword=value\n").
func recordSize(keywordSize, valueSize int) int {
	// length + ' ' + keyword + '=' + value + '\n'
	size := 1 + keywordSize + 1 + valueSize + 1
	size += decimalDigits(uint64(decimalDigits(uint64(size)) + size))
	return size
}

// unknownKeywords collects extended-record keywords that have been
// diagnosed already, so that each produces a single warning per run.
var unknownKeywords = struct {
	mu sync.Mutex
	m  map[string]bool
}{m: make(map[string]bool)}

// unknownKeyword reports whether the keyword is diagnosed for the
// first time.
func unknownKeyword(keyword string) bool {
	unknownKeywords.mu.Lock()
	defer unknownKeywords.mu.Unlock()
	if unknownKeywords.m[keyword] {
		return false
	}
	unknownKeywords.m[keyword] = true
	return true
}

var errBadRecord = errors.New("tarlz: error in extended records")

// Parse parses an extended-records block. In permissive mode
// duplicate and redundant records are accepted. Warnings about
// unknown keywords are appended to warn.
func (e *Extended) Parse(buf []byte, permissive bool, warn *[]string) error {
	e.Reset()
	for pos := 0; pos < len(buf); {
		rest := buf[pos:]
		sp := -1
		for i, c := range rest {
			if c == ' ' {
				sp = i
				break
			}
			if c < '0' || c > '9' {
				return errBadRecord
			}
		}
		if sp <= 0 {
			return errBadRecord
		}
		rsize, err := strconv.Atoi(string(rest[:sp]))
		if err != nil || rsize <= sp || rsize > len(rest) ||
			rest[rsize-1] != '\n' {
			return errBadRecord
		}
		// keyword=value without the final newline
		kv := string(rest[sp+1 : rsize-1])
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return errBadRecord
		}
		keyword, value := kv[:i], kv[i+1:]
		switch keyword {
		case "path":
			if e.Path != "" && !permissive {
				return errBadRecord
			}
			p := stripTrailingSlashes(value)
			p, e.RemovedPrefix = removeLeadingDotSlash(p)
			// truncate at the first embedded null character
			if j := strings.IndexByte(p, 0); j >= 0 {
				p = p[:j]
			}
			e.Path = p
		case "linkpath":
			if e.Linkpath != "" && !permissive {
				return errBadRecord
			}
			e.Linkpath = stripTrailingSlashes(value)
		case "size":
			if e.FileSize != 0 && !permissive {
				return errBadRecord
			}
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil || size < 0 || size > MaxFileSize {
				return errBadRecord
			}
			// a size that fits the ustar header is redundant
			if size < 1<<33 && !permissive {
				return errBadRecord
			}
			e.FileSize = size
		case "uid":
			if e.UID >= 0 && !permissive {
				return errBadRecord
			}
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil || id < 0 {
				return errBadRecord
			}
			// an id that fits the ustar header is redundant
			if idInUstarRange(id) && !permissive {
				return errBadRecord
			}
			e.UID = id
		case "gid":
			if e.GID >= 0 && !permissive {
				return errBadRecord
			}
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil || id < 0 {
				return errBadRecord
			}
			if idInUstarRange(id) && !permissive {
				return errBadRecord
			}
			e.GID = id
		case "atime":
			if e.Atime.Valid() && !permissive {
				return errBadRecord
			}
			if e.Atime, err = parseEtime(value); err != nil {
				return err
			}
		case "mtime":
			if e.Mtime.Valid() && !permissive {
				return errBadRecord
			}
			if e.Mtime, err = parseEtime(value); err != nil {
				return err
			}
		case "GNU.crc32":
			if e.CRCPresent && !permissive {
				return errBadRecord
			}
			if rsize != len(crcRecord) || len(value) != 8 {
				return errBadRecord
			}
			e.CRCPresent = true
			stored, err := strconv.ParseUint(value, 16, 32)
			if err != nil {
				return errBadRecord
			}
			computed := windowedCRC32C(buf, pos+rsize-9)
			if uint32(stored) != computed {
				return fmt.Errorf("tarlz: CRC mismatch in extended"+
					" records; stored %08X, computed %08X",
					stored, computed)
			}
		case "comment":
			// ignored
		default:
			if warn != nil && unknownKeyword(keyword) {
				*warn = append(*warn, fmt.Sprintf(
					"tarlz: ignoring extended record '%s'",
					keyword))
			}
		}
		pos += rsize
	}
	return nil
}

// appendRecord appends one record with minimal length coding.
func appendRecord(buf []byte, keyword, value string) []byte {
	size := recordSize(len(keyword), len(value))
	buf = strconv.AppendInt(buf, int64(size), 10)
	buf = append(buf, ' ')
	buf = append(buf, keyword...)
	buf = append(buf, '=')
	buf = append(buf, value...)
	return append(buf, '\n')
}

// edataSize returns the unpadded size of the formatted records.
func (e *Extended) edataSize() int {
	size := len(crcRecord)
	if e.Path != "" {
		size += recordSize(4, len(e.Path))
	}
	if e.Linkpath != "" {
		size += recordSize(8, len(e.Linkpath))
	}
	if e.FileSize > 0 {
		size += recordSize(4, decimalDigits(uint64(e.FileSize)))
	}
	if e.UID >= 0 {
		size += recordSize(3, decimalDigits(uint64(e.UID)))
	}
	if e.GID >= 0 {
		size += recordSize(3, decimalDigits(uint64(e.GID)))
	}
	if e.Atime.outOfUstarRange() {
		size += recordSize(5, len(e.Atime.String()))
	}
	if e.Mtime.outOfUstarRange() {
		size += recordSize(5, len(e.Mtime.String()))
	}
	return size
}

// Empty reports whether no record except the crc record would be
// formatted.
func (e *Extended) Empty() bool {
	return e.Path == "" && e.Linkpath == "" && e.FileSize == 0 &&
		e.UID < 0 && e.GID < 0 && !e.Atime.outOfUstarRange() &&
		!e.Mtime.outOfUstarRange()
}

// Format returns the extended-records block padded to a multiple of
// the block size, with the crc record last.
func (e *Extended) Format() ([]byte, error) {
	edsize := e.edataSize()
	if edsize > MaxEdataSize {
		return nil, errors.New("tarlz: extended records are too long")
	}
	buf := make([]byte, 0, roundUp(int64(edsize)))
	if e.Path != "" {
		buf = appendRecord(buf, "path", e.Path)
	}
	if e.Linkpath != "" {
		buf = appendRecord(buf, "linkpath", e.Linkpath)
	}
	if e.FileSize > 0 {
		buf = appendRecord(buf, "size",
			strconv.FormatInt(e.FileSize, 10))
	}
	if e.UID >= 0 {
		buf = appendRecord(buf, "uid", strconv.FormatInt(e.UID, 10))
	}
	if e.GID >= 0 {
		buf = appendRecord(buf, "gid", strconv.FormatInt(e.GID, 10))
	}
	if e.Atime.outOfUstarRange() {
		buf = appendRecord(buf, "atime", e.Atime.String())
	}
	if e.Mtime.outOfUstarRange() {
		buf = appendRecord(buf, "mtime", e.Mtime.String())
	}
	buf = append(buf, crcRecord...)
	if len(buf) != edsize {
		return nil, errors.New("tarlz: error formatting extended records")
	}
	crc := windowedCRC32C(buf, edsize-9)
	hex := fmt.Sprintf("%08X", crc)
	copy(buf[edsize-9:], hex)
	e.CRCPresent = true
	psize := int(roundUp(int64(edsize)))
	for len(buf) < psize {
		buf = append(buf, 0)
	}
	return buf, nil
}

// FullSize returns the size of the extended header block plus the
// padded records, or zero if no records are needed.
func (e *Extended) FullSize() int64 {
	if e.Empty() {
		return 0
	}
	return BlockSize + roundUp(int64(e.edataSize()))
}

// FillFromUstar copies path, linkpath, file size, uid, gid and mtime
// from the ustar header for the fields not set by extended records.
func (e *Extended) FillFromUstar(header []byte) {
	if e.Linkpath == "" {
		ln := cstring(header[linknameO : linknameO+linknameL])
		e.Linkpath = stripTrailingSlashes(ln)
	}
	if e.Path == "" {
		prefix := cstring(header[prefixO : prefixO+prefixL])
		name := cstring(header[nameO : nameO+nameL])
		stored := name
		if prefix != "" {
			if name != "" {
				stored = prefix + "/" + name
			} else {
				stored = prefix
			}
		}
		stored = stripTrailingSlashes(stored)
		e.Path, e.RemovedPrefix = removeLeadingDotSlash(stored)
	}
	typeflag := header[typeflagO]
	if e.FileSize == 0 &&
		(typeflag == tfRegular || typeflag == tfHiperf) {
		e.FileSize = int64(parseOctal(header[sizeO : sizeO+sizeL]))
	}
	if e.UID < 0 {
		e.UID = int64(parseOctal(header[uidO : uidO+uidL]))
	}
	if e.GID < 0 {
		e.GID = int64(parseOctal(header[gidO : gidO+gidL]))
	}
	if !e.Mtime.Valid() {
		e.Mtime = SetTime(
			int64(parseOctal(header[mtimeO:mtimeO+mtimeL])), 0)
	}
}

// cstring converts a null-terminated field into a string.
func cstring(p []byte) string {
	for i, c := range p {
		if c == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}
