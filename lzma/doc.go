// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lzma implements the LZMA stream variant used by the lzip
// container format. The format fixes the property triple to lc=3,
// lp=0, pb=2 and terminates every stream with an end-of-stream
// marker, a match with distance 0xFFFFFFFF and length 2.
//
// The [Decoder] reads one raw LZMA stream and writes the
// decompressed data to an io.Writer. The [Writer] compresses data
// into a raw stream using the sequencers of the
// github.com/ulikunitz/lz module for match finding.
package lzma
