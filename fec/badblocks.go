package fec

import (
	"crypto/md5"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// burstMinLen is the minimum number of consecutive identical bytes
// that marks a block of an lzip file as damaged when no CRC array is
// available. Compressed lzip data essentially never contains such
// runs.
const burstMinLen = 8

// burstedDataBlock detects a run of identical bytes in block i, with
// the window widened by half the run length on both sides.
func burstedDataBlock(idx *Index, prodata []byte, i int64) bool {
	pos := idx.blockPos(i)
	if pos >= burstMinLen/2 {
		pos -= burstMinLen / 2
	}
	end := idx.blockEnd(i) + burstMinLen/2
	if end > int64(len(prodata)) {
		end = int64(len(prodata))
	}
	count := 0
	for j := pos + 1; j < end; j++ {
		if prodata[j] != prodata[j-1] {
			count = 0
		} else if count++; count >= burstMinLen-1 {
			return true
		}
	}
	return false
}

// FindBadBlocks partitions the protected data into blocks and returns
// the indices of the blocks whose stored CRC does not match. For lzip
// files without CRC arrays the burst heuristic is used instead.
// Blocks past a truncation are reported as bad. The MD5 of the
// protected data is returned as a side effect if the data is
// complete; for truncated data the digest is zero.
func FindBadBlocks(idx *Index, prodata []byte, isLZ bool) (bad []int64,
	digest [16]byte) {
	h := md5.New()
	blocks := idx.ProdataBlocks()
	full := int64(len(prodata)) >= idx.prodataSize
	available := blocks
	if !full {
		available = int64(len(prodata)) / idx.blockSize
		if available > blocks {
			available = blocks
		}
	}
	for i := int64(0); i < available; i++ {
		pos := idx.blockPos(i)
		size := idx.blockLen(i)
		p := prodata[pos : pos+size]
		if full {
			h.Write(p)
		}
		switch {
		case idx.hasArray():
			mismatch := false
			if idx.crcArray != nil && idx.crcArray[i] !=
				crc32.ChecksumIEEE(p) {
				mismatch = true
			}
			if idx.crccArray != nil && idx.crccArray[i] !=
				crc32.Checksum(p, crc32cTable) {
				mismatch = true
			}
			if mismatch {
				bad = append(bad, i)
			}
		case isLZ:
			if burstedDataBlock(idx, prodata, i) {
				bad = append(bad, i)
			}
		}
	}
	if full {
		copy(digest[:], h.Sum(nil))
	}
	for i := available; i < blocks; i++ { // truncated file
		bad = append(bad, i)
	}
	return bad, digest
}
