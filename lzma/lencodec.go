package lzma

// lenModel groups the probability models for match lengths: two
// selector bits and the low, mid and high trees. Lengths are coded
// reduced by MinMatchLen.
type lenModel struct {
	choice1 prob
	choice2 prob
	low     [posStates][lenLowSymbols]prob
	mid     [posStates][lenMidSymbols]prob
	high    [lenHighSymbols]prob
}

func (m *lenModel) reset() {
	m.choice1 = probInit
	m.choice2 = probInit
	for i := range m.low {
		initProbs(m.low[i][:])
	}
	for i := range m.mid {
		initProbs(m.mid[i][:])
	}
	initProbs(m.high[:])
}

// decode returns a match length in [MinMatchLen, MaxMatchLen].
func (m *lenModel) decode(d *rangeDecoder, posState uint32) uint32 {
	if d.decodeBit(&m.choice1) == 0 {
		return d.decodeTree(m.low[posState][:], lenLowBits) + MinMatchLen
	}
	if d.decodeBit(&m.choice2) == 0 {
		return d.decodeTree(m.mid[posState][:], lenMidBits) +
			MinMatchLen + lenLowSymbols
	}
	return d.decodeTree(m.high[:], lenHighBits) +
		MinMatchLen + lenLowSymbols + lenMidSymbols
}

// encode writes the length l, which must have been reduced by
// MinMatchLen already.
func (m *lenModel) encode(e *rangeEncoder, l, posState uint32) error {
	var err error
	switch {
	case l < lenLowSymbols:
		if err = e.encodeBit(0, &m.choice1); err != nil {
			return err
		}
		return e.encodeTree(l, m.low[posState][:], lenLowBits)
	case l < lenLowSymbols+lenMidSymbols:
		if err = e.encodeBit(1, &m.choice1); err != nil {
			return err
		}
		if err = e.encodeBit(0, &m.choice2); err != nil {
			return err
		}
		return e.encodeTree(l-lenLowSymbols, m.mid[posState][:],
			lenMidBits)
	default:
		if err = e.encodeBit(1, &m.choice1); err != nil {
			return err
		}
		if err = e.encodeBit(1, &m.choice2); err != nil {
			return err
		}
		return e.encodeTree(l-lenLowSymbols-lenMidSymbols, m.high[:],
			lenHighBits)
	}
}
