package fec

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Index holds the parsed contents of a fec file.
type Index struct {
	prodataSize int64
	prodataMD5  [16]byte
	blockSize   int64
	gf16        bool
	fecBlocks   int // total parity blocks generated at create time

	crcArray  []uint32 // CRC32 array, nil if absent
	crccArray []uint32 // CRC32-C array, nil if absent

	packets []fecPacket
}

// IndexConfig provides the parameters for fec file parsing.
type IndexConfig struct {
	// IgnoreErrors steps over corrupt packets and unrecognized
	// bytes.
	IgnoreErrors bool
}

// NewIndex reads and parses a fec file.
func NewIndex(r io.Reader, cfg IndexConfig) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "fec: error reading fec file")
	}
	return parseIndex(data, cfg)
}

func parseIndex(data []byte, cfg IndexConfig) (*Index, error) {
	idx := &Index{}
	if len(data) == 0 {
		return nil, errors.New("fec: fec file is empty")
	}
	if len(data) >= magicLen && string(data[:magicLen]) != chksumMagic &&
		string(data[:magicLen]) != fecMagic {
		return nil, errors.New(
			"fec: bad magic number (file is not fec data)")
	}

	// pos usually points to a packet header, except when skipping a
	// corrupt packet
	for pos := int64(0); pos < int64(len(data)); {
		rest := data[pos:]
		size := checkChksumImage(rest)
		if size > 2 {
			if err := idx.addChksum(chksumPacket{p: rest[:size]},
				cfg.IgnoreErrors); err != nil {
				return nil, err
			}
			pos += size
			continue
		}
		if size != 0 {
			if cfg.IgnoreErrors {
				pos++
				continue
			}
			if size == 1 {
				return nil, errors.New(
					"fec: wrong size in chksum packet")
			}
			return nil, errors.New("fec: wrong CRC in chksum packet")
		}
		size = checkFecImage(rest)
		if size > 2 {
			fp := fecPacket{p: rest[:size]}
			if idx.blockSize == 0 {
				idx.blockSize = fp.blockSize()
			} else if idx.blockSize != fp.blockSize() {
				return nil, errors.New(
					"fec: contradictory block size in fec packet")
			}
			idx.packets = append(idx.packets, fp)
			pos += size
			continue
		}
		if size != 0 {
			if cfg.IgnoreErrors {
				pos++
				continue
			}
			if size == 1 {
				return nil, errors.New(
					"fec: wrong size in fec packet")
			}
			return nil, errors.New("fec: wrong CRC in fec packet")
		}
		if cfg.IgnoreErrors {
			// resync on the next magic byte
			pos++
			for pos < int64(len(data)) &&
				data[pos] != chksumMagic[0] {
				pos++
			}
			continue
		}
		return nil, fmt.Errorf("fec: unknown packet type at pos %d",
			pos)
	}

	if idx.prodataSize <= 0 {
		return nil, errors.New("fec: no valid chksum packets found")
	}
	if len(idx.packets) == 0 && !cfg.IgnoreErrors {
		return nil, errors.New("fec: no valid fec packets found")
	}
	if !idx.hasArray() && !cfg.IgnoreErrors {
		return nil, errors.New("fec: no valid CRC arrays found")
	}
	if int64(len(idx.packets)) > idx.ProdataBlocks() {
		return nil, errors.New(
			"fec: more fec packets than data blocks")
	}
	// fec block numbers must be distinct and below the field limit
	maxK := MaxK8
	if idx.gf16 {
		maxK = MaxK16
	}
	seen := make([]bool, maxK)
	for _, fp := range idx.packets {
		fbn := fp.number()
		if fbn >= maxK || fbn >= idx.fecBlocks {
			return nil, errors.New(
				"fec: invalid fec block number in fec packet")
		}
		if seen[fbn] {
			return nil, errors.New(
				"fec: same fec block number in two fec packets")
		}
		seen[fbn] = true
	}
	return idx, nil
}

// addChksum merges a chksum packet into the index, checking for
// contradictions with earlier packets.
func (idx *Index) addChksum(c chksumPacket, ignoreErrors bool) error {
	prodataSize := int64(c.prodataSize())
	if idx.prodataSize <= 0 { // first chksum packet
		idx.prodataSize = prodataSize
		idx.prodataMD5 = c.prodataMD5()
		idx.gf16 = c.gf16()
		idx.fecBlocks = c.fecBlocks()
	} else {
		if idx.prodataSize != prodataSize {
			return errors.New("fec: contradictory protected data" +
				" size in chksum packet")
		}
		if idx.prodataMD5 != c.prodataMD5() {
			return errors.New("fec: contradictory protected data" +
				" MD5 in chksum packet")
		}
		if idx.gf16 != c.gf16() {
			return errors.New("fec: contradictory Galois field" +
				" size in chksum packet")
		}
		if idx.fecBlocks != c.fecBlocks() {
			return errors.New("fec: contradictory fec block count" +
				" in chksum packet")
		}
	}
	if idx.blockSize == 0 {
		idx.blockSize = c.blockSize()
	} else if idx.blockSize != c.blockSize() {
		return errors.New(
			"fec: contradictory block size in chksum packet")
	}
	if !c.isCRC32C() {
		if idx.crcArray != nil {
			return errors.New("fec: more than one CRC32 array found")
		}
		idx.crcArray = c.crcArray()
	} else {
		if idx.crccArray != nil {
			return errors.New(
				"fec: more than one CRC32-C array found")
		}
		idx.crccArray = c.crcArray()
	}
	return nil
}

func (idx *Index) hasArray() bool {
	return idx.crcArray != nil || idx.crccArray != nil
}

// ProdataSize returns the size of the protected data.
func (idx *Index) ProdataSize() int64 { return idx.prodataSize }

// ProdataMD5 returns the MD5 digest of the protected data.
func (idx *Index) ProdataMD5() [16]byte { return idx.prodataMD5 }

// BlockSize returns the fec block size.
func (idx *Index) BlockSize() int64 { return idx.blockSize }

// GF16 reports whether the parity uses GF(2^16).
func (idx *Index) GF16() bool { return idx.gf16 }

// FecBlocks returns the number of fec packets present in the file.
func (idx *Index) FecBlocks() int { return len(idx.packets) }

// TotalFecBlocks returns the number of parity blocks generated when
// the fec file was created.
func (idx *Index) TotalFecBlocks() int { return idx.fecBlocks }

// ProdataBlocks returns the number of protected blocks.
func (idx *Index) ProdataBlocks() int64 {
	return ceilDivide(idx.prodataSize, idx.blockSize)
}

// blockPos returns the offset of protected block i.
func (idx *Index) blockPos(i int64) int64 { return i * idx.blockSize }

// blockLen returns the size of protected block i; the final block may
// be short.
func (idx *Index) blockLen(i int64) int64 {
	pos := idx.blockPos(i)
	if pos >= idx.prodataSize {
		return 0
	}
	if idx.prodataSize-pos < idx.blockSize {
		return idx.prodataSize - pos
	}
	return idx.blockSize
}

// blockEnd returns the exclusive end of protected block i.
func (idx *Index) blockEnd(i int64) int64 {
	return idx.blockPos(i) + idx.blockLen(i)
}
