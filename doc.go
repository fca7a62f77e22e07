// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lzip supports the compression and decompression of lzip
// files and the recovery tooling around the format.
//
// An lzip file is a sequence of independent members. Each member
// consists of a 6-byte header, an LZMA stream ending in an
// end-of-stream marker and a 20-byte trailer carrying the CRC32 and
// the sizes of the member. The [Reader] and [Writer] types process
// members serially; the [Index] provides per-member offsets for
// random access and is the basis for the parallel decoder and the
// surgical edit operations.
//
// Arbitrary data may follow the last member. A databox wraps such
// trailing data between the magic "TDATABOX" and a 64-bit size field
// so that the indexer can skip it reliably.
package lzip
