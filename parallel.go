package lzip

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ulikunitz/lzip/lzma"
)

// errorSlot implements first-error-wins coordination for parallel
// decoding. The worker processing the earliest member wins; later
// publishers are ignored.
type errorSlot struct {
	mu     sync.Mutex
	member int
	err    error
}

func (s *errorSlot) publish(member int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil || member < s.member {
		s.member = member
		s.err = err
	}
}

func (s *errorSlot) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// packet carries a chunk of decompressed member data from a worker to
// the muxer.
type packet struct {
	data []byte
}

const packetSize = 1 << 16

// DecodeParallel decompresses the indexed file to w using the given
// number of worker goroutines. Members are assigned to workers in
// round-robin order; the output is written in strict member order, so
// it is byte-identical to a serial decode. With workers < 2 the
// members are decoded serially.
func DecodeParallel(w io.Writer, r io.ReaderAt, idx *Index, workers int,
	cfg ReaderConfig) error {
	n := idx.Members()
	if workers < 2 || n < 2 {
		return decodeSerialIndexed(w, r, idx, cfg)
	}
	if workers > n {
		workers = n
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var slot errorSlot
	outCh := make([]chan packet, n)
	for i := range outCh {
		outCh[i] = make(chan packet, 4)
	}

	for k := 0; k < workers; k++ {
		k := k
		g.Go(func() error {
			next := k
			// the muxer must not block on a channel that will
			// never be closed
			defer func() {
				for ; next < n; next += workers {
					close(outCh[next])
				}
			}()
			for ; next < n; next += workers {
				err := decodeMemberAt(ctx, r, idx.Member(next),
					outCh[next], cfg)
				close(outCh[next])
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						slot.publish(next, err)
					}
					next += workers
					return err
				}
			}
			return nil
		})
	}

	// The muxer drains every member channel in order, so that the
	// bytes appear exactly as in a serial run. On error the
	// remaining packets are drained and released.
	var werr error
	for i := 0; i < n; i++ {
		for p := range outCh[i] {
			if werr != nil {
				continue
			}
			if _, err := w.Write(p.data); err != nil {
				werr = err
				cancel()
			}
		}
	}
	gerr := g.Wait()
	if serr := slot.get(); serr != nil {
		return serr
	}
	if werr != nil {
		return werr
	}
	if gerr != nil && !errors.Is(gerr, context.Canceled) {
		return gerr
	}
	return nil
}

// decodeMemberAt decodes a single member into packets sent through
// the channel.
func decodeMemberAt(ctx context.Context, r io.ReaderAt, m Member,
	ch chan<- packet, cfg ReaderConfig) error {
	sr := io.NewSectionReader(r, m.Mblock.Pos+HeaderLen,
		m.Mblock.Size-HeaderLen)
	pw := &packetWriter{ctx: ctx, ch: ch}
	dec, err := lzma.NewDecoder(sr, m.DictSize, pw)
	if err != nil {
		return err
	}
	if err = dec.Decode(cfg.IgnoreNonzero); err != nil {
		return err
	}
	if err = verifyTrailer(dec); err != nil {
		return err
	}
	if dec.MemberPos()+HeaderLen != m.Mblock.Size {
		return &IndexError{
			Msg:    "member size does not match index",
			Status: StatusData,
		}
	}
	return nil
}

// packetWriter buffers decoded data into packets and hands them to
// the muxer. Sends abort when the pipeline is cancelled.
type packetWriter struct {
	ctx context.Context
	ch  chan<- packet
}

func (pw *packetWriter) Write(p []byte) (n int, err error) {
	for len(p) > 0 {
		k := len(p)
		if k > packetSize {
			k = packetSize
		}
		data := make([]byte, k)
		copy(data, p)
		select {
		case pw.ch <- packet{data: data}:
		case <-pw.ctx.Done():
			return n, pw.ctx.Err()
		}
		p = p[k:]
		n += k
	}
	return n, nil
}

// DecodeMember decodes the single member m of an indexed file to w
// and verifies its trailer.
func DecodeMember(w io.Writer, r io.ReaderAt, m Member,
	cfg ReaderConfig) error {
	sr := io.NewSectionReader(r, m.Mblock.Pos+HeaderLen,
		m.Mblock.Size-HeaderLen)
	dec, err := lzma.NewDecoder(sr, m.DictSize, w)
	if err != nil {
		return err
	}
	if err = dec.Decode(cfg.IgnoreNonzero); err != nil {
		return err
	}
	return verifyTrailer(dec)
}

// decodeSerialIndexed decodes the members of an indexed file one
// after the other.
func decodeSerialIndexed(w io.Writer, r io.ReaderAt, idx *Index,
	cfg ReaderConfig) error {
	for i := 0; i < idx.Members(); i++ {
		if err := DecodeMember(w, r, idx.Member(i), cfg); err != nil {
			return err
		}
	}
	return nil
}
