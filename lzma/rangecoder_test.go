package lzma

import (
	"bytes"
	"math/rand"
	"testing"
)

// newTestSource returns a byteSource reading from a byte slice.
func newTestSource(p []byte) *byteSource {
	s := new(byteSource)
	s.init(bytes.NewReader(p))
	return s
}

func TestRangeCoderBits(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	bits := make([]uint32, 4096)
	for i := range bits {
		bits[i] = uint32(rnd.Intn(2))
	}

	var buf bytes.Buffer
	var e rangeEncoder
	e.init(&buf)
	probs := make([]prob, 16)
	initProbs(probs)
	for i, b := range bits {
		if err := e.encodeBit(b, &probs[i%len(probs)]); err != nil {
			t.Fatalf("encodeBit error %s", err)
		}
	}
	if err := e.close(); err != nil {
		t.Fatalf("close error %s", err)
	}

	d := rangeDecoder{src: newTestSource(buf.Bytes())}
	if !d.load() {
		t.Fatalf("load: first byte is not zero")
	}
	initProbs(probs)
	for i, b := range bits {
		g := d.decodeBit(&probs[i%len(probs)])
		if g != b {
			t.Fatalf("bit %d: decoded %d; want %d", i, g, b)
		}
	}
}

func TestRangeCoderDirect(t *testing.T) {
	rnd := rand.New(rand.NewSource(17))
	values := make([]uint32, 512)
	for i := range values {
		values[i] = rnd.Uint32() & 0x3FFFFFF
	}

	var buf bytes.Buffer
	var e rangeEncoder
	e.init(&buf)
	for _, v := range values {
		if err := e.encodeDirectBits(v, 26); err != nil {
			t.Fatalf("encodeDirectBits error %s", err)
		}
	}
	if err := e.close(); err != nil {
		t.Fatalf("close error %s", err)
	}

	d := rangeDecoder{src: newTestSource(buf.Bytes())}
	if !d.load() {
		t.Fatalf("load: first byte is not zero")
	}
	for i, v := range values {
		g := d.decodeDirect(26)
		if g != v {
			t.Fatalf("value %d: decoded %#x; want %#x", i, g, v)
		}
	}
}

func TestTreeCodec(t *testing.T) {
	rnd := rand.New(rand.NewSource(19))
	var buf bytes.Buffer
	var e rangeEncoder
	e.init(&buf)
	probs := make([]prob, 1<<8)
	initProbs(probs)
	values := make([]uint32, 256)
	for i := range values {
		values[i] = uint32(rnd.Intn(256))
	}
	for _, v := range values {
		if err := e.encodeTree(v, probs, 8); err != nil {
			t.Fatalf("encodeTree error %s", err)
		}
	}
	if err := e.close(); err != nil {
		t.Fatalf("close error %s", err)
	}

	d := rangeDecoder{src: newTestSource(buf.Bytes())}
	if !d.load() {
		t.Fatalf("load: first byte is not zero")
	}
	initProbs(probs)
	for i, v := range values {
		g := d.decodeTree(probs, 8)
		if g != v {
			t.Fatalf("value %d: decoded %d; want %d", i, g, v)
		}
	}
}

func TestTreeReverseCodec(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	var buf bytes.Buffer
	var e rangeEncoder
	e.init(&buf)
	probs := make([]prob, 1<<4)
	initProbs(probs)
	values := make([]uint32, 256)
	for i := range values {
		values[i] = uint32(rnd.Intn(16))
	}
	for _, v := range values {
		if err := e.encodeTreeReversed(v, probs, 4); err != nil {
			t.Fatalf("encodeTreeReversed error %s", err)
		}
	}
	if err := e.close(); err != nil {
		t.Fatalf("close error %s", err)
	}

	d := rangeDecoder{src: newTestSource(buf.Bytes())}
	if !d.load() {
		t.Fatalf("load: first byte is not zero")
	}
	initProbs(probs)
	for i, v := range values {
		g := d.decodeTreeReversed(probs, 4)
		if g != v {
			t.Fatalf("value %d: decoded %d; want %d", i, g, v)
		}
	}
}
