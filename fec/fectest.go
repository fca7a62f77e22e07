package fec

import "bytes"

// CoverageResult summarizes a damage-scenario scan.
type CoverageResult struct {
	Scenarios         int
	Successes         int
	FailedComparisons int
	Unrepairable      int
}

// corruptCopy flips one byte in every selected block of a copy of the
// data.
func corruptCopy(idx *Index, prodata []byte, blocks []int64) []byte {
	damaged := append([]byte(nil), prodata...)
	for _, i := range blocks {
		pos := idx.blockPos(i)
		damaged[pos] ^= 0xFF
	}
	return damaged
}

// tryScenario damages the given blocks, attempts a repair in memory
// and compares the result against the original data.
func tryScenario(idx *Index, prodata []byte, blocks []int64,
	res *CoverageResult) {
	res.Scenarios++
	damaged := corruptCopy(idx, prodata, blocks)
	bad, _ := FindBadBlocks(idx, damaged, false)
	repaired, err := Repair(idx, damaged, bad)
	if err != nil {
		res.Unrepairable++
		return
	}
	if !bytes.Equal(repaired, prodata) {
		res.FailedComparisons++
		return
	}
	res.Successes++
}

// ScanClusters enumerates damage scenarios of k contiguous clusters
// of clusterSize blocks each and attempts a repair for each scenario
// without writing any output.
func ScanClusters(idx *Index, prodata []byte, k, clusterSize int) CoverageResult {
	var res CoverageResult
	blocks := idx.ProdataBlocks()
	positions := make([]int64, 0, k)
	var recurse func(start int64, left int)
	recurse = func(start int64, left int) {
		if left == 0 {
			var damaged []int64
			for _, p := range positions {
				for j := int64(0); j < int64(clusterSize) &&
					p+j < blocks; j++ {
					damaged = append(damaged, p+j)
				}
			}
			tryScenario(idx, prodata, damaged, &res)
			return
		}
		for p := start; p+int64(left-1)*int64(clusterSize) < blocks; p += int64(clusterSize) {
			positions = append(positions, p)
			recurse(p+int64(clusterSize), left-1)
			positions = positions[:len(positions)-1]
		}
	}
	recurse(0, k)
	return res
}

// ScanSlidingWindow slides a damage window of the given size in bytes
// over the protected data and attempts a repair at every block-
// aligned position.
func ScanSlidingWindow(idx *Index, prodata []byte, windowSize int64) CoverageResult {
	var res CoverageResult
	blocks := idx.ProdataBlocks()
	span := ceilDivide(windowSize, idx.blockSize)
	if span < 1 {
		span = 1
	}
	for start := int64(0); start+span <= blocks; start++ {
		var damaged []int64
		for j := int64(0); j < span; j++ {
			damaged = append(damaged, start+j)
		}
		tryScenario(idx, prodata, damaged, &res)
	}
	return res
}
