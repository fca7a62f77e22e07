// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"bytes"
	"crypto/md5"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testData(t *testing.T, size int) []byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(71))
	data := make([]byte, size)
	rnd.Read(data)
	return data
}

func makeIndex(t *testing.T, prodata []byte, cfg CreateConfig) *Index {
	t.Helper()
	fecdata, err := Create(prodata, cfg)
	require.NoError(t, err)
	idx, err := NewIndex(bytes.NewReader(fecdata), IndexConfig{})
	require.NoError(t, err)
	return idx
}

func TestCreateIndex(t *testing.T) {
	prodata := testData(t, 1<<20)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4, CRC32C: true})
	require.Equal(t, int64(len(prodata)), idx.ProdataSize())
	require.Equal(t, int64(4096), idx.BlockSize())
	require.Equal(t, 4, idx.FecBlocks())
	require.Equal(t, md5.Sum(prodata), idx.ProdataMD5())
	// 256 data blocks exceed the GF(2^8) limit
	require.True(t, idx.GF16())
	require.NotNil(t, idx.crcArray)
	require.NotNil(t, idx.crccArray)

	bad, err := Check(idx, prodata, false)
	require.NoError(t, err)
	require.Empty(t, bad)
}

func TestSingleBlockRepair(t *testing.T) {
	prodata := testData(t, 1<<20)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4})

	damaged := append([]byte(nil), prodata...)
	damaged[123456] ^= 0x01

	bad, _ := FindBadBlocks(idx, damaged, false)
	require.Len(t, bad, 1)
	require.Equal(t, int64(123456/4096), bad[0])

	repaired, err := Repair(idx, damaged, bad)
	require.NoError(t, err)
	require.True(t, bytes.Equal(repaired, prodata))
}

func TestMultiBlockRepair(t *testing.T) {
	prodata := testData(t, 1<<19)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 8})

	damaged := append([]byte(nil), prodata...)
	for _, pos := range []int{0, 5000, 100000, 250000} {
		damaged[pos] ^= 0xFF
	}
	bad, _ := FindBadBlocks(idx, damaged, false)
	require.Len(t, bad, 4)
	repaired, err := Repair(idx, damaged, bad)
	require.NoError(t, err)
	require.True(t, bytes.Equal(repaired, prodata))
}

func TestTooManyErrors(t *testing.T) {
	prodata := testData(t, 1<<18)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 2})

	damaged := append([]byte(nil), prodata...)
	for i := 0; i < 3; i++ {
		damaged[i*4096] ^= 0xFF
	}
	bad, _ := FindBadBlocks(idx, damaged, false)
	require.Len(t, bad, 3)
	_, err := Repair(idx, damaged, bad)
	var tme *TooManyErrors
	require.ErrorAs(t, err, &tme)
	require.Equal(t, 3, tme.BadBlocks)
	require.Equal(t, 2, tme.FecBlocks)
}

func TestGF16Repair(t *testing.T) {
	// more than 128 data blocks forces GF(2^16)
	prodata := testData(t, 200*512)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 512,
		FecBlocks: 6})
	require.True(t, idx.GF16())

	damaged := append([]byte(nil), prodata...)
	for _, pos := range []int{100, 512 * 150} {
		damaged[pos] ^= 0x80
	}
	bad, _ := FindBadBlocks(idx, damaged, false)
	require.Len(t, bad, 2)
	repaired, err := Repair(idx, damaged, bad)
	require.NoError(t, err)
	require.True(t, bytes.Equal(repaired, prodata))
}

func TestTruncatedProdata(t *testing.T) {
	prodata := testData(t, 1<<18)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4})

	// the blocks past the truncation are reported as bad
	truncated := prodata[:len(prodata)-2*4096-100]
	bad, _ := FindBadBlocks(idx, truncated, false)
	require.Len(t, bad, 3)
	repaired, err := Repair(idx, truncated, bad)
	require.NoError(t, err)
	require.True(t, bytes.Equal(repaired, prodata))
}

func TestBurstedBlockHeuristic(t *testing.T) {
	// compressed-looking data without byte runs
	prodata := make([]byte, 1<<16)
	for i := range prodata {
		prodata[i] = byte(i*7 + i/3)
	}
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4})
	// hide the CRC arrays to force the heuristic
	idx.crcArray = nil
	idx.crccArray = nil

	bad, _ := FindBadBlocks(idx, prodata, true)
	require.Empty(t, bad)

	damaged := append([]byte(nil), prodata...)
	for i := 0; i < 16; i++ {
		damaged[20000+i] = 0xAA
	}
	bad, _ = FindBadBlocks(idx, damaged, true)
	require.Len(t, bad, 1)
	require.Equal(t, int64(20000/4096), bad[0])
}

func TestIgnoreErrorsResync(t *testing.T) {
	prodata := testData(t, 1<<18)
	fecdata, err := Create(prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4})
	require.NoError(t, err)

	// corrupt the payload of the first fec packet; strict parsing
	// fails, ignore-errors steps past it to the next packet
	garbled := append([]byte(nil), fecdata...)
	chksumSize := int64(ckHeaderLen) + 4*64
	garbled[chksumSize+fpHeaderLen+10] ^= 0xFF
	_, err = NewIndex(bytes.NewReader(garbled), IndexConfig{})
	require.Error(t, err)
	idx, err := NewIndex(bytes.NewReader(garbled),
		IndexConfig{IgnoreErrors: true})
	require.NoError(t, err)
	require.Equal(t, 3, idx.FecBlocks())
}

func TestContradictoryPackets(t *testing.T) {
	prodataA := testData(t, 1<<16)
	prodataB := append([]byte(nil), prodataA...)
	prodataB[0] ^= 0xFF

	fecA, err := Create(prodataA, CreateConfig{BlockSize: 4096,
		FecBlocks: 2})
	require.NoError(t, err)
	fecB, err := Create(prodataB, CreateConfig{BlockSize: 4096,
		FecBlocks: 2})
	require.NoError(t, err)

	// chksum packets with different MD5 digests contradict
	combined := append(append([]byte(nil), fecA...), fecB...)
	_, err = NewIndex(bytes.NewReader(combined), IndexConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "contradictory")
}

func TestScanSlidingWindow(t *testing.T) {
	prodata := testData(t, 64 * 4096)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4})
	res := ScanSlidingWindow(idx, prodata, 2*4096)
	require.Equal(t, res.Scenarios, res.Successes)
	require.Zero(t, res.FailedComparisons)
	require.Zero(t, res.Unrepairable)
}

func TestScanClusters(t *testing.T) {
	prodata := testData(t, 32 * 4096)
	idx := makeIndex(t, prodata, CreateConfig{BlockSize: 4096,
		FecBlocks: 4})
	res := ScanClusters(idx, prodata, 2, 2)
	require.NotZero(t, res.Scenarios)
	require.Equal(t, res.Scenarios, res.Successes)
	require.Zero(t, res.FailedComparisons)
}