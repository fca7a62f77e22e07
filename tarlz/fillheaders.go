package tarlz

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"sync"
	"syscall"
)

// idCache collapses concurrent name lookups for the same id into a
// single database query. One cache each exists for user and group
// names; both are owned by the pipeline, not global.
type idCache struct {
	mu     sync.Mutex
	id     int64
	name   string
	lookup func(id int64) string
}

func (c *idCache) get(id int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.id || c.name == "" {
		c.id = id
		c.name = c.lookup(id)
	}
	return c.name
}

func lookupUserName(id int64) string {
	u, err := user.LookupId(strconv.FormatInt(id, 10))
	if err != nil {
		return ""
	}
	return u.Username
}

func lookupGroupName(id int64) string {
	g, err := user.LookupGroupId(strconv.FormatInt(id, 10))
	if err != nil {
		return ""
	}
	return g.Name
}

// headerFiller builds ustar headers and extended records for files on
// disk.
type headerFiller struct {
	uidCache     idCache
	gidCache     idCache
	numericOwner bool
	dereference  bool
}

func newHeaderFiller(numericOwner, dereference bool) *headerFiller {
	return &headerFiller{
		uidCache:     idCache{id: -1, lookup: lookupUserName},
		gidCache:     idCache{id: -1, lookup: lookupGroupName},
		numericOwner: numericOwner,
		dereference:  dereference,
	}
}

// fill builds the header and extended records for the named file. It
// returns the size of the file data to be archived.
func (hf *headerFiller) fill(filename string, extended *Extended,
	header []byte) (fileSize int64, err error) {
	var st os.FileInfo
	if hf.dereference {
		st, err = os.Stat(filename)
	} else {
		st, err = os.Lstat(filename)
	}
	if err != nil {
		return 0, fmt.Errorf("tarlz: can't stat input file: %w", err)
	}
	initTarHeader(header)
	forceExtended := false

	mode := st.Mode()
	printOctal(header[modeO:modeO+modeL-1], uint64(modePerm(mode)))

	var uid, gid int64
	var atimeSec, atimeNsec int64
	sys, ok := st.Sys().(*syscall.Stat_t)
	if ok {
		uid = int64(sys.Uid)
		gid = int64(sys.Gid)
		atimeSec, atimeNsec = sys.Atim.Sec, sys.Atim.Nsec
	}
	if idInUstarRange(uid) {
		printOctal(header[uidO:uidO+uidL-1], uint64(uid))
	} else {
		extended.UID = uid
		forceExtended = true
	}
	if idInUstarRange(gid) {
		printOctal(header[gidO:gidO+gidL-1], uint64(gid))
	} else {
		extended.GID = gid
		forceExtended = true
	}
	mtime := st.ModTime()
	if timeInUstarRange(mtime.Unix()) {
		printOctal(header[mtimeO:mtimeO+mtimeL-1],
			uint64(mtime.Unix()))
	} else {
		extended.Atime = SetTime(atimeSec, int(atimeNsec))
		extended.Mtime = SetTime(mtime.Unix(), mtime.Nanosecond())
		forceExtended = true
	}

	var typeflag byte
	switch {
	case mode.IsRegular():
		typeflag = tfRegular
	case mode.IsDir():
		typeflag = tfDirectory
	case mode&fs.ModeSymlink != 0:
		typeflag = tfSymlink
		target, err := os.Readlink(filename)
		if err != nil {
			return 0, fmt.Errorf(
				"tarlz: error reading symbolic link: %w", err)
		}
		target = stripTrailingSlashes(target)
		if len(target) <= linknameL {
			copy(header[linknameO:], target)
		} else {
			extended.Linkpath = target
			forceExtended = true
		}
	case mode&fs.ModeDevice != 0:
		typeflag = tfBlockdev
		if mode&fs.ModeCharDevice != 0 {
			typeflag = tfChardev
		}
		if ok {
			major := (sys.Rdev >> 8) & 0xFFF
			minor := sys.Rdev&0xFF | (sys.Rdev>>12)&0xFFF00
			if major >= 2<<20 || minor >= 2<<20 {
				return 0, fmt.Errorf("tarlz: %s: devmajor or"+
					" devminor is too large", filename)
			}
			printOctal(header[devmajorO:devmajorO+devmajorL-1],
				major)
			printOctal(header[devminorO:devminorO+devminorL-1],
				minor)
		}
	case mode&fs.ModeNamedPipe != 0:
		typeflag = tfFifo
	default:
		return 0, fmt.Errorf("tarlz: %s: unknown file type", filename)
	}
	header[typeflagO] = typeflag

	if !hf.numericOwner {
		if name := hf.uidCache.get(uid); name != "" {
			copy(header[unameO:unameO+unameL-1], name)
		}
		if name := hf.gidCache.get(gid); name != "" {
			copy(header[gnameO:gnameO+gnameL-1], name)
		}
	}

	if typeflag == tfRegular && st.Size() > 0 {
		fileSize = st.Size()
	}
	if fileSize >= 1<<33 {
		extended.FileSize = fileSize
		forceExtended = true
	} else {
		printOctal(header[sizeO:sizeO+sizeL-1], uint64(fileSize))
	}
	storeName(filename, extended, header, forceExtended)
	printOctal(header[chksumO:chksumO+chksumL-1], ustarChksum(header))
	return fileSize, nil
}

// modePerm extracts the permission and id bits for the octal mode
// field.
func modePerm(mode fs.FileMode) uint32 {
	m := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		m |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		m |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		m |= 0o1000
	}
	return m
}

// storeName stores the file name in the ustar header if possible,
// splitting into prefix and name at a slash, and falls back to an
// extended path record.
func storeName(filename string, extended *Extended, header []byte,
	forceExtended bool) bool {
	stored, prefix := removeLeadingDotSlash(filename)
	extended.RemovedPrefix = prefix
	if !forceExtended {
		n := len(stored)
		const maxLen = prefixL + 1 + nameL
		if n <= nameL {
			copy(header[nameO:], stored)
			return true
		}
		if n <= maxLen {
			// find the shortest prefix
			for i := n - nameL - 1; i < n && i <= prefixL; i++ {
				if stored[i] == '/' {
					copy(header[nameO:], stored[i+1:])
					copy(header[prefixO:], stored[:i])
					return true
				}
			}
		}
	}
	extended.Path = stored
	return false
}
