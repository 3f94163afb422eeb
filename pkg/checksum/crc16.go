// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package checksum implements the incremental CRC-16 used to fingerprint
// application images.
//
// The algorithm is CRC-16/XMODEM: polynomial 0x1021, initial value 0x0000,
// no reflection and no final XOR. Input may be fed in chunks of any size;
// the digest only depends on the bytes and their order.
package checksum

import (
	"fmt"
	"hash"
)

const (
	// Polynomial is the CRC-16-CCITT generator polynomial
	Polynomial = 0x1021

	// Initial is the register value after Reset
	Initial = 0x0000

	// Size is the digest size in bytes
	Size = 2
)

var table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		c := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if c&0x8000 != 0 {
				c = (c << 1) ^ Polynomial
			} else {
				c <<= 1
			}
		}
		table[i] = c
	}
}

// Digest is a finished CRC-16 value.
type Digest uint16

// String renders the digest as four upper-case hex digits.
func (d Digest) String() string {
	return fmt.Sprintf("%04X", uint16(d))
}

// CRC16 is a streaming CRC-16 accumulator. The zero value is ready to use.
type CRC16 struct {
	crc uint16
}

var _ hash.Hash = (*CRC16)(nil)

// New returns an accumulator in its initial state.
func New() *CRC16 {
	return &CRC16{crc: Initial}
}

// Reset returns the accumulator to its initial state.
func (c *CRC16) Reset() {
	c.crc = Initial
}

// Write folds p into the accumulator. It never returns an error.
func (c *CRC16) Write(p []byte) (int, error) {
	c.crc = update(c.crc, p)
	return len(p), nil
}

// Sum16 returns the digest of everything written since the last Reset.
func (c *CRC16) Sum16() uint16 {
	return c.crc
}

// Digest returns Sum16 as a Digest.
func (c *CRC16) Digest() Digest {
	return Digest(c.crc)
}

// Sum appends the big-endian digest to b.
func (c *CRC16) Sum(b []byte) []byte {
	return append(b, byte(c.crc>>8), byte(c.crc))
}

// Size returns the digest size in bytes.
func (c *CRC16) Size() int { return Size }

// BlockSize returns the natural input block size.
func (c *CRC16) BlockSize() int { return 1 }

// Checksum computes the CRC-16 of data in one call.
func Checksum(data []byte) uint16 {
	return update(Initial, data)
}

func update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = (crc << 8) ^ table[byte(crc>>8)^b]
	}
	return crc
}
