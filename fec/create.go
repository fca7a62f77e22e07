package fec

import (
	"crypto/md5"
	"hash/crc32"

	"github.com/pkg/errors"
)

// CreateConfig provides the parameters for fec file creation.
type CreateConfig struct {
	// BlockSize is the fec block size. Default picks the smallest
	// valid block size that keeps the block count within the Galois
	// field limit, at least 4096.
	BlockSize int64

	// FecBlocks is the number of parity blocks. Default is roughly
	// 6.25 percent of the data blocks, at least 4.
	FecBlocks int

	// CRC32C adds a CRC32-C array in addition to the CRC32 array.
	CRC32C bool
}

// SetDefaults computes block size and parity count for the data size.
func (cfg *CreateConfig) SetDefaults(prodataSize int64) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 4096
		for ceilDivide(prodataSize, cfg.BlockSize) > MaxK16 {
			cfg.BlockSize *= 2
		}
	}
	if cfg.FecBlocks == 0 {
		blocks := ceilDivide(prodataSize, cfg.BlockSize)
		cfg.FecBlocks = int(blocks / 16)
		if cfg.FecBlocks < 4 {
			cfg.FecBlocks = 4
		}
	}
}

// Verify checks the configuration against the data size.
func (cfg *CreateConfig) Verify(prodataSize int64) error {
	if !validBlockSize(cfg.BlockSize) {
		return errors.New("fec: invalid block size")
	}
	blocks := ceilDivide(prodataSize, cfg.BlockSize)
	if blocks > MaxK16 {
		return errors.New("fec: too many data blocks for block size")
	}
	maxK := int64(MaxK8)
	if blocks > maxK {
		maxK = MaxK16
	}
	if int64(cfg.FecBlocks) < 1 || int64(cfg.FecBlocks) > blocks ||
		int64(cfg.FecBlocks) > maxK {
		return errors.New("fec: invalid number of fec blocks")
	}
	return nil
}

// Create builds the fec sidecar data protecting prodata: one chksum
// packet per CRC flavor followed by one fec packet per parity block.
func Create(prodata []byte, cfg CreateConfig) ([]byte, error) {
	prodataSize := int64(len(prodata))
	if prodataSize == 0 {
		return nil, errors.New("fec: nothing to protect")
	}
	if prodataSize > MaxProdataSize {
		return nil, errors.New("fec: protected data is too large")
	}
	cfg.SetDefaults(prodataSize)
	if err := cfg.Verify(prodataSize); err != nil {
		return nil, err
	}
	fbs := cfg.BlockSize
	dataBlocks := int(ceilDivide(prodataSize, fbs))
	gf16 := int64(dataBlocks) > MaxK8 || cfg.FecBlocks > MaxK8

	enc, err := newCodec(dataBlocks, cfg.FecBlocks, gf16)
	if err != nil {
		return nil, err
	}
	shards := make([][]byte, dataBlocks+cfg.FecBlocks)
	crcs := make([]uint32, dataBlocks)
	crccs := make([]uint32, dataBlocks)
	for i := 0; i < dataBlocks; i++ {
		pos := int64(i) * fbs
		end := pos + fbs
		if end > prodataSize {
			end = prodataSize
		}
		p := prodata[pos:end]
		crcs[i] = crc32.ChecksumIEEE(p)
		crccs[i] = crc32.Checksum(p, crc32cTable)
		shard := make([]byte, fbs)
		copy(shard, p)
		shards[i] = shard
	}
	for i := dataBlocks; i < len(shards); i++ {
		shards[i] = make([]byte, fbs)
	}
	if err = enc.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "fec: encoding failed")
	}

	digest := md5.Sum(prodata)
	var buf []byte
	buf = appendChksumPacket(buf, prodataSize, digest, fbs, gf16,
		false, cfg.FecBlocks, crcs)
	if cfg.CRC32C {
		buf = appendChksumPacket(buf, prodataSize, digest, fbs, gf16,
			true, cfg.FecBlocks, crccs)
	}
	for i := 0; i < cfg.FecBlocks; i++ {
		buf = appendFecPacket(buf, i, shards[dataBlocks+i])
	}
	return buf, nil
}
