// Copyright 2014-2026 Ulrich Kunitz. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fec creates and reads forward-error-correction sidecar
// files for lzip data and repairs damaged protected files with them.
//
// A fec file is a concatenation of packets. Chksum packets describe
// the protected data (size, MD5, fec block size, Galois field) and
// carry a CRC array with one checksum per protected block. Fec
// packets each carry one Reed-Solomon parity block identified by its
// fec block number. Damaged blocks are located by comparing the CRC
// arrays against the protected file, or by a burst heuristic for lzip
// files without arrays, and reconstructed from the parity blocks.
package fec
