// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"crypto/md5"
	"fmt"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// newCodec builds the Reed-Solomon codec for the index parameters.
func newCodec(dataBlocks, fecBlocks int, gf16 bool) (reedsolomon.Encoder, error) {
	var opts []reedsolomon.Option
	if gf16 {
		opts = append(opts, reedsolomon.WithLeopardGF16(true))
	}
	enc, err := reedsolomon.New(dataBlocks, fecBlocks, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "fec: can't create codec")
	}
	return enc, nil
}

// TooManyErrors reports that the damage exceeds the available
// redundancy.
type TooManyErrors struct {
	BadBlocks int
	FecBlocks int
}

func (err *TooManyErrors) Error() string {
	return fmt.Sprintf("fec: too many damaged blocks (%d);"+
		" can't repair more than %d damaged blocks",
		err.BadBlocks, err.FecBlocks)
}

// Repair reconstructs the bad blocks of the protected data from the
// parity blocks in the index. It returns the repaired copy of the
// protected data after verifying its MD5 against the stored digest.
// The prodata slice is not modified.
func Repair(idx *Index, prodata []byte, bad []int64) ([]byte, error) {
	if len(bad) == 0 {
		return nil, errors.New("fec: nothing to repair")
	}
	if len(bad) > idx.FecBlocks() {
		return nil, &TooManyErrors{
			BadBlocks: len(bad),
			FecBlocks: idx.FecBlocks(),
		}
	}
	dataBlocks := int(idx.ProdataBlocks())
	fbs := idx.blockSize
	enc, err := newCodec(dataBlocks, idx.fecBlocks, idx.gf16)
	if err != nil {
		return nil, err
	}

	badSet := make(map[int64]bool, len(bad))
	for _, i := range bad {
		badSet[i] = true
	}

	// data shards; the final block is padded with zeros, missing and
	// bad blocks stay nil
	shards := make([][]byte, dataBlocks+idx.fecBlocks)
	for i := 0; i < dataBlocks; i++ {
		if badSet[int64(i)] {
			continue
		}
		pos := idx.blockPos(int64(i))
		end := pos + idx.blockLen(int64(i))
		if end > int64(len(prodata)) {
			continue // truncated
		}
		shard := make([]byte, fbs)
		copy(shard, prodata[pos:end])
		shards[i] = shard
	}
	// parity shards at their fec block numbers
	for _, fp := range idx.packets {
		shard := make([]byte, fbs)
		copy(shard, fp.block())
		shards[dataBlocks+fp.number()] = shard
	}

	if err = enc.Reconstruct(shards); err != nil {
		return nil, errors.Wrap(err, "fec: reconstruction failed")
	}

	repaired := make([]byte, idx.prodataSize)
	for i := 0; i < dataBlocks; i++ {
		pos := idx.blockPos(int64(i))
		copy(repaired[pos:pos+idx.blockLen(int64(i))], shards[i])
	}
	if md5.Sum(repaired) != idx.prodataMD5 {
		return nil, errors.New(
			"fec: MD5 mismatch after repair; repair rejected")
	}
	return repaired, nil
}

// Check verifies the protected data against the index. It returns the
// indices of the damaged blocks; a nil slice with a nil error means
// the data checked successfully.
func Check(idx *Index, prodata []byte, isLZ bool) ([]int64, error) {
	if int64(len(prodata)) != idx.prodataSize {
		return nil, fmt.Errorf("fec: size mismatch between protected"+
			" data (%d bytes) and fec data (%d bytes)",
			len(prodata), idx.prodataSize)
	}
	bad, digest := FindBadBlocks(idx, prodata, isLZ)
	if len(bad) > 0 {
		return bad, nil
	}
	if digest != idx.prodataMD5 {
		return nil, errors.New("fec: MD5 mismatch between protected" +
			" data and fec data")
	}
	return nil, nil
}
