// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarlz

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ulikunitz/lzip"
)

/* Parallel decode does not skip damaged headers; it exits at the
   first error. When a worker detects a problem it publishes the error
   for its member; the worker with the earliest member wins, the
   context is cancelled and the muxer drains the remaining outputs. */

// memberOutput carries the diagnostics of one lzip member from a
// worker to the muxer.
type memberOutput struct {
	lines []string
}

// errSlot implements first-error-wins coordination keyed by member
// id.
type errSlot struct {
	mu     sync.Mutex
	member int
	err    error
}

func (s *errSlot) publish(member int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil || member < s.member {
		s.member = member
		s.err = err
	}
}

func (s *errSlot) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// decodeIndexed processes the lzip members of an indexed archive with
// parallel workers. Member i is assigned to worker i modulo the
// number of workers. Diagnostics are emitted in member order.
func decodeIndexed(f io.ReaderAt, idx *lzip.Index, cfg *DecodeConfig,
	makeVisit makeVisitFunc, emit func(string)) error {
	n := idx.Members()
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var slot errSlot
	outCh := make([]chan memberOutput, n)
	for i := range outCh {
		outCh[i] = make(chan memberOutput, 1)
	}

	for k := 0; k < workers; k++ {
		k := k
		g.Go(func() error {
			next := k
			defer func() {
				for ; next < n; next += workers {
					close(outCh[next])
				}
			}()
			for ; next < n; next += workers {
				var out memberOutput
				emitLine := func(line string) {
					out.lines = append(out.lines, line)
				}
				err := decodeMember(ctx, f, idx.Member(next),
					cfg, makeVisit(k, emitLine))
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						slot.publish(next, err)
					}
					return err
				}
				select {
				case outCh[next] <- out:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	// muxer: print member diagnostics in member order
	for i := 0; i < n; i++ {
		out, ok := <-outCh[i]
		if !ok {
			continue
		}
		for _, line := range out.lines {
			emit(line)
		}
	}
	gerr := g.Wait()
	if serr := slot.get(); serr != nil {
		return serr
	}
	if gerr != nil && !errors.Is(gerr, context.Canceled) {
		return gerr
	}
	return nil
}

// decodeMember decompresses one lzip member through a pipe and parses
// the contained tar members.
func decodeMember(ctx context.Context, f io.ReaderAt, m lzip.Member,
	cfg *DecodeConfig, visit entryFunc) error {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := lzip.DecodeMember(pw, f, m, lzip.ReaderConfig{})
		pw.CloseWithError(err)
		done <- err
	}()
	ar := newMemberReader(pr, m.Dblock.Size)
	perr := parseArchive(ar, cfg, false, visit)
	ar.Close()
	derr := <-done
	if perr != nil {
		return perr
	}
	if derr != nil && !errors.Is(derr, io.ErrClosedPipe) {
		return derr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}
