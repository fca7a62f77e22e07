// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tarlz reads and writes multimember tar.lz archives: POSIX
// pax tar archives where the tar members are grouped into lzip
// members in a way that keeps the archive both a valid tar.lz file
// and seekable through the lzip index.
//
// Archive creation runs a pipeline of a grouper, a configurable
// number of compressing workers and a muxer that reassembles the
// members in input order, so the parallel output is byte-identical
// to a serial run for the per-file and per-directory grouping
// policies. Decoding an indexed archive distributes the lzip members
// over parallel workers; listings and diagnostics are still emitted
// in archive order.
package tarlz
