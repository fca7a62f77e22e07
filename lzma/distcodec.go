package lzma

import "math/bits"

// distModel holds the probability models for match distances: one
// 6-bit slot tree per length state, a shared model array for the
// distances below modeledDistances and the 4-bit align tree.
type distModel struct {
	slot  [lenStates][1 << disSlotBits]prob
	dis   [modeledDistances - endDisModel + 1]prob
	align [disAlignSize]prob
}

func (m *distModel) reset() {
	for i := range m.slot {
		initProbs(m.slot[i][:])
	}
	initProbs(m.dis[:])
	initProbs(m.align[:])
}

// decode returns the distance for a match with the given reduced
// length. The value 0xFFFFFFFF marks the end of the stream.
func (m *distModel) decode(d *rangeDecoder, l uint32) uint32 {
	slot := d.decodeTree(m.slot[lenState(l)][:], disSlotBits)
	if slot < startDisModel {
		return slot
	}
	directBits := int(slot>>1 - 1)
	dist := (2 | slot&1) << uint(directBits)
	if slot < endDisModel {
		dist += d.decodeTreeReversed(m.dis[dist-slot:], directBits)
	} else {
		dist += d.decodeDirect(directBits-disAlignBits) << disAlignBits
		dist += d.decodeTreeReversed(m.align[:], disAlignBits)
	}
	return dist
}

// encode writes the distance for a match with the given reduced
// length.
func (m *distModel) encode(e *rangeEncoder, dist, l uint32) error {
	var slot, directBits uint32
	if dist < startDisModel {
		slot = dist
	} else {
		directBits = uint32(30 - bits.LeadingZeros32(dist))
		slot = startDisModel - 2 + directBits<<1
		slot += (dist >> directBits) & 1
	}
	if err := e.encodeTree(slot, m.slot[lenState(l)][:], disSlotBits); err != nil {
		return err
	}
	switch {
	case slot < startDisModel:
		return nil
	case slot < endDisModel:
		base := (2 | slot&1) << directBits
		return e.encodeTreeReversed(dist-base, m.dis[base-slot:],
			int(directBits))
	}
	err := e.encodeDirectBits(dist>>disAlignBits,
		int(directBits)-disAlignBits)
	if err != nil {
		return err
	}
	return e.encodeTreeReversed(dist, m.align[:], disAlignBits)
}
