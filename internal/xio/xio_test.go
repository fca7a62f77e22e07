package xio

import (
	"bytes"
	"errors"
	"testing"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
	err    error
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.err
}

func TestWriteCloserStack(t *testing.T) {
	w := NewWriteCloserStack()
	if _, err := w.Write([]byte("ignored")); err != nil {
		t.Fatalf("Write on empty stack error %s", err)
	}
	a := &closeRecorder{}
	b := &closeRecorder{err: errors.New("close failure")}
	w.Push(a)
	w.Push(b)
	if _, err := w.Write([]byte("data")); err != nil {
		t.Fatalf("Write error %s", err)
	}
	if a.Len() != 0 || b.String() != "data" {
		t.Fatalf("write did not go to the top writer")
	}
	err := w.Close()
	if !a.closed || !b.closed {
		t.Fatalf("not all writers closed")
	}
	if err == nil {
		t.Fatalf("close error lost")
	}
}

func TestReadAtFull(t *testing.T) {
	r := bytes.NewReader([]byte("0123456789"))
	p := make([]byte, 4)
	if err := ReadAtFull(r, p, 3); err != nil {
		t.Fatalf("ReadAtFull error %s", err)
	}
	if string(p) != "3456" {
		t.Fatalf("read %q; want %q", p, "3456")
	}
	if err := ReadAtFull(r, p, 8); err == nil {
		t.Fatalf("no error for short read")
	}
}

func TestCopyRange(t *testing.T) {
	src := bytes.NewReader([]byte("abcdefghij"))
	var dst bytes.Buffer
	if err := CopyRange(&dst, src, 2, 5, make([]byte, 2)); err != nil {
		t.Fatalf("CopyRange error %s", err)
	}
	if dst.String() != "cdefg" {
		t.Fatalf("copied %q; want %q", dst.String(), "cdefg")
	}
}
