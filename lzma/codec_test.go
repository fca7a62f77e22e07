package lzma

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestLenModel(t *testing.T) {
	rnd := rand.New(rand.NewSource(29))
	lengths := make([]uint32, 1024)
	for i := range lengths {
		lengths[i] = uint32(MinMatchLen + rnd.Intn(MaxMatchLen-
			MinMatchLen+1))
	}

	var buf bytes.Buffer
	var e rangeEncoder
	e.init(&buf)
	var m lenModel
	m.reset()
	for i, l := range lengths {
		posState := uint32(i) & posStateMask
		if err := m.encode(&e, l-MinMatchLen, posState); err != nil {
			t.Fatalf("encode error %s", err)
		}
	}
	if err := e.close(); err != nil {
		t.Fatalf("close error %s", err)
	}

	d := rangeDecoder{src: newTestSource(buf.Bytes())}
	if !d.load() {
		t.Fatalf("load: first byte is not zero")
	}
	m.reset()
	for i, l := range lengths {
		posState := uint32(i) & posStateMask
		g := m.decode(&d, posState)
		if g != l {
			t.Fatalf("length %d: decoded %d; want %d", i, g, l)
		}
	}
}

func TestDistModel(t *testing.T) {
	rnd := rand.New(rand.NewSource(31))
	dists := make([]uint32, 1024)
	for i := range dists {
		switch i % 4 {
		case 0:
			dists[i] = uint32(rnd.Intn(4))
		case 1:
			dists[i] = uint32(rnd.Intn(128))
		case 2:
			dists[i] = uint32(rnd.Intn(1 << 20))
		default:
			dists[i] = rnd.Uint32()>>2 | 1<<24
		}
	}
	dists[len(dists)-1] = eosDist

	var buf bytes.Buffer
	var e rangeEncoder
	e.init(&buf)
	var m distModel
	m.reset()
	for i, dist := range dists {
		l := uint32(i % lenStates)
		if err := m.encode(&e, dist, l); err != nil {
			t.Fatalf("encode error %s", err)
		}
	}
	if err := e.close(); err != nil {
		t.Fatalf("close error %s", err)
	}

	d := rangeDecoder{src: newTestSource(buf.Bytes())}
	if !d.load() {
		t.Fatalf("load: first byte is not zero")
	}
	m.reset()
	for i, dist := range dists {
		l := uint32(i % lenStates)
		g := m.decode(&d, l)
		if g != dist {
			t.Fatalf("dist %d: decoded %#x; want %#x", i, g, dist)
		}
	}
}
