package fec

import "hash/crc32"

// Packet magics. Every packet starts with one of them.
const (
	chksumMagic = "LZFECCHK"
	fecMagic    = "LZFECBLK"
	magicLen    = 8
)

// Layout of the chksum packet.
const (
	ckHeaderCRCOff   = 8
	ckVersionOff     = 12
	ckFlagsOff       = 13
	ckFecBlocksOff   = 14
	ckProdataSizeOff = 16
	ckProdataMD5Off  = 24
	ckBlockSizeOff   = 40
	ckPayloadCRCOff  = 44
	ckHeaderLen      = 48
)

// Layout of the fec packet.
const (
	fpHeaderCRCOff  = 8
	fpNumberOff     = 12
	fpBlockSizeOff  = 16
	fpPayloadCRCOff = 20
	fpHeaderLen     = 24
)

// Flags of the chksum packet.
const (
	flagGF16   = 1 << 0
	flagCRC32C = 1 << 1
)

// Limits of the format. The fec block numbers must be below the
// maximum for the Galois field in use.
const (
	MaxK8        = 1 << 7
	MaxK16       = 1 << 15
	minBlockSize = 512
	maxBlockSize = 1 << 27
	// MaxProdataSize bounds the size of the protected data.
	MaxProdataSize = int64(MaxK16) * maxBlockSize
)

func validBlockSize(size int64) bool {
	return minBlockSize <= size && size <= maxBlockSize &&
		size%minBlockSize == 0
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 |
		uint32(b[3])<<24
}

func getUint64LE(b []byte) uint64 {
	return uint64(getUint32LE(b)) | uint64(getUint32LE(b[4:]))<<32
}

func putUint16LE(b []byte, x uint16) {
	b[0] = byte(x)
	b[1] = byte(x >> 8)
}

func putUint32LE(b []byte, x uint32) {
	b[0] = byte(x)
	b[1] = byte(x >> 8)
	b[2] = byte(x >> 16)
	b[3] = byte(x >> 24)
}

func putUint64LE(b []byte, x uint64) {
	putUint32LE(b, uint32(x))
	putUint32LE(b[4:], uint32(x>>32))
}

// headerCRC computes the CRC32 of a packet header excluding the CRC
// field itself.
func headerCRC(p []byte, headerLen int) uint32 {
	crc := crc32.Update(0, crc32.IEEETable, p[:magicLen])
	return crc32.Update(crc, crc32.IEEETable, p[magicLen+4:headerLen])
}

// chksumPacket provides access to the fields of a chksum packet
// image.
type chksumPacket struct {
	p []byte
}

func (c chksumPacket) version() byte       { return c.p[ckVersionOff] }
func (c chksumPacket) flags() byte         { return c.p[ckFlagsOff] }
func (c chksumPacket) gf16() bool          { return c.flags()&flagGF16 != 0 }
func (c chksumPacket) isCRC32C() bool      { return c.flags()&flagCRC32C != 0 }
func (c chksumPacket) fecBlocks() int      { return int(c.p[ckFecBlocksOff]) | int(c.p[ckFecBlocksOff+1])<<8 }
func (c chksumPacket) prodataSize() uint64 { return getUint64LE(c.p[ckProdataSizeOff:]) }
func (c chksumPacket) blockSize() int64    { return int64(getUint32LE(c.p[ckBlockSizeOff:])) }

func (c chksumPacket) prodataMD5() (md5 [16]byte) {
	copy(md5[:], c.p[ckProdataMD5Off:ckProdataMD5Off+16])
	return md5
}

// crcArray returns the per-block CRC values of the packet.
func (c chksumPacket) crcArray() []uint32 {
	n := (len(c.p) - ckHeaderLen) / 4
	a := make([]uint32, n)
	for i := range a {
		a[i] = getUint32LE(c.p[ckHeaderLen+4*i:])
	}
	return a
}

func ceilDivide(a, b int64) int64 { return (a + b - 1) / b }

// checkChksumImage validates a chksum packet at the start of p.
// Return values: 0 bad magic, 1 bad size, 2 bad CRC, otherwise the
// packet size.
func checkChksumImage(p []byte) int64 {
	if len(p) < ckHeaderLen || string(p[:magicLen]) != chksumMagic {
		return 0
	}
	if getUint32LE(p[ckHeaderCRCOff:]) != headerCRC(p, ckHeaderLen) {
		return 2
	}
	c := chksumPacket{p: p}
	if c.version() != 1 {
		return 2
	}
	prodataSize := c.prodataSize()
	fbs := c.blockSize()
	if int64(prodataSize) > MaxProdataSize || !validBlockSize(fbs) {
		return 1
	}
	blocks := ceilDivide(int64(prodataSize), fbs)
	maxK := int64(MaxK8)
	if c.gf16() {
		maxK = MaxK16
	}
	if blocks <= 0 || blocks > maxK {
		return 1
	}
	imageSize := int64(ckHeaderLen) + 4*blocks
	if imageSize > int64(len(p)) {
		return 1
	}
	payload := p[ckHeaderLen:imageSize]
	if getUint32LE(p[ckPayloadCRCOff:]) !=
		crc32.Update(0, crc32.IEEETable, payload) {
		return 2
	}
	return imageSize
}

// fecPacket provides access to the fields of a fec packet image.
type fecPacket struct {
	p []byte
}

func (f fecPacket) number() int {
	return int(f.p[fpNumberOff]) | int(f.p[fpNumberOff+1])<<8
}

func (f fecPacket) blockSize() int64 {
	return int64(getUint32LE(f.p[fpBlockSizeOff:]))
}

func (f fecPacket) block() []byte {
	return f.p[fpHeaderLen : fpHeaderLen+int(f.blockSize())]
}

// checkFecImage validates a fec packet at the start of p. Return
// values: 0 bad magic, 1 bad size, 2 bad CRC, otherwise the packet
// size.
func checkFecImage(p []byte) int64 {
	if len(p) < fpHeaderLen || string(p[:magicLen]) != fecMagic {
		return 0
	}
	if getUint32LE(p[fpHeaderCRCOff:]) != headerCRC(p, fpHeaderLen) {
		return 2
	}
	f := fecPacket{p: p}
	fbs := f.blockSize()
	if !validBlockSize(fbs) {
		return 1
	}
	imageSize := int64(fpHeaderLen) + fbs
	if imageSize > int64(len(p)) {
		return 1
	}
	if getUint32LE(p[fpPayloadCRCOff:]) !=
		crc32.Update(0, crc32.IEEETable, p[fpHeaderLen:imageSize]) {
		return 2
	}
	return imageSize
}

// appendChksumPacket formats a chksum packet for the given
// parameters.
func appendChksumPacket(buf []byte, prodataSize int64, md5sum [16]byte,
	fbs int64, gf16 bool, crc32c bool, fecBlocks int,
	crcs []uint32) []byte {
	p := make([]byte, ckHeaderLen+4*len(crcs))
	copy(p, chksumMagic)
	p[ckVersionOff] = 1
	var flags byte
	if gf16 {
		flags |= flagGF16
	}
	if crc32c {
		flags |= flagCRC32C
	}
	p[ckFlagsOff] = flags
	putUint16LE(p[ckFecBlocksOff:], uint16(fecBlocks))
	putUint64LE(p[ckProdataSizeOff:], uint64(prodataSize))
	copy(p[ckProdataMD5Off:], md5sum[:])
	putUint32LE(p[ckBlockSizeOff:], uint32(fbs))
	for i, crc := range crcs {
		putUint32LE(p[ckHeaderLen+4*i:], crc)
	}
	putUint32LE(p[ckPayloadCRCOff:],
		crc32.Update(0, crc32.IEEETable, p[ckHeaderLen:]))
	putUint32LE(p[ckHeaderCRCOff:], headerCRC(p, ckHeaderLen))
	return append(buf, p...)
}

// appendFecPacket formats a fec packet with the parity block.
func appendFecPacket(buf []byte, number int, block []byte) []byte {
	p := make([]byte, fpHeaderLen+len(block))
	copy(p, fecMagic)
	putUint16LE(p[fpNumberOff:], uint16(number))
	putUint32LE(p[fpBlockSizeOff:], uint32(len(block)))
	copy(p[fpHeaderLen:], block)
	putUint32LE(p[fpPayloadCRCOff:],
		crc32.Update(0, crc32.IEEETable, block))
	putUint32LE(p[fpHeaderCRCOff:], headerCRC(p, fpHeaderLen))
	return append(buf, p...)
}
