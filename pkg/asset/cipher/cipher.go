//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package cipher implements the game's asset cipher: AES-128 with a
// shuffled key schedule and a chaining mode whose second block lets the
// reader verify it holds the right key.
//
// Ciphertext layout:
//
//	block 0    random IV
//	block 1    E(roundKey0 ^ IV)            self-check block
//	block i>=2 E(plain[i-2] ^ cipher[i-1])  zero-padded, no stored length
//
// The self-check only tells a wrong key from a right one. It carries no
// integrity guarantee for the payload.
package cipher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
	opt "github.com/repeale/fp-go/option"

	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/logging"
)

// HeaderSize is the IV plus the self-check block.
const HeaderSize = 2 * BlockSize

// Key is a 128-bit cipher key.
type Key [KeySize]byte

// ParseKey decodes a 32-digit hex key. Whitespace and an optional 0x prefix
// are ignored.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", asseterrors.ErrInvalidKey, err)
	}
	if len(raw) != KeySize {
		return k, fmt.Errorf("%w: got %d bytes, want %d", asseterrors.ErrInvalidKey, len(raw), KeySize)
	}
	copy(k[:], raw)
	return k, nil
}

// String renders the key as hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// KeySet is the ordered list of candidate keys tried on encrypted assets.
type KeySet []Key

// ParseKeySet parses each hex key in order.
func ParseKeySet(keys []string) (KeySet, error) {
	set := make(KeySet, 0, len(keys))
	for i, s := range keys {
		if strings.TrimSpace(s) == "" {
			continue
		}
		k, err := ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		set = append(set, k)
	}
	return set, nil
}

// Engine encrypts and decrypts asset payloads.
type Engine struct {
	random io.Reader
	logger hclog.Logger
}

// NewEngine creates an engine drawing IVs from crypto/rand.
func NewEngine(logger hclog.Logger) *Engine {
	return &Engine{
		random: rand.Reader,
		logger: logging.OrNull(logger),
	}
}

// WithRandom returns a copy of the engine that reads IVs from r.
func (e *Engine) WithRandom(r io.Reader) *Engine {
	cp := *e
	cp.random = r
	return &cp
}

// CiphertextSize is the encrypted size of an n byte plaintext.
func CiphertextSize(n int) int {
	return HeaderSize + (n+BlockSize-1)/BlockSize*BlockSize
}

// Encrypt encrypts plaintext under key. The only failure is a short read
// from the IV source.
func (e *Engine) Encrypt(plaintext []byte, key Key) ([]byte, error) {
	ks := expandKey(key, keyShuffle)
	out := make([]byte, CiphertextSize(len(plaintext)))

	iv := out[:BlockSize]
	if _, err := io.ReadFull(e.random, iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	var block [BlockSize]byte
	for i := range block {
		block[i] = ks[0][i] ^ iv[i]
	}
	ks.encryptBlock(out[BlockSize:HeaderSize], block[:])

	prev := out[BlockSize:HeaderSize]
	for off := 0; off < len(plaintext); off += BlockSize {
		block = [BlockSize]byte{}
		copy(block[:], plaintext[off:])
		for i := range block {
			block[i] ^= prev[i]
		}
		dst := out[HeaderSize+off : HeaderSize+off+BlockSize]
		ks.encryptBlock(dst, block[:])
		prev = dst
	}

	e.logger.Trace("Encrypted payload",
		"plain_size", len(plaintext),
		"cipher_size", len(out))

	return out, nil
}

// Decrypt returns the padded plaintext, or None when the self-check block
// does not match key. Inputs shorter than HeaderSize or not a whole number
// of blocks are rejected before any cipher work.
func (e *Engine) Decrypt(ciphertext []byte, key Key) opt.Option[[]byte] {
	if len(ciphertext) < HeaderSize || len(ciphertext)%BlockSize != 0 {
		e.logger.Trace("Ciphertext rejected",
			"size", len(ciphertext),
			"error", asseterrors.ErrCiphertextShort)
		return opt.None[[]byte]()
	}

	ks := expandKey(key, keyShuffle)

	var check [BlockSize]byte
	ks.decryptBlock(check[:], ciphertext[BlockSize:HeaderSize])
	for i := range check {
		check[i] ^= ciphertext[i]
	}
	if subtle.ConstantTimeCompare(check[:], ks[0][:]) != 1 {
		return opt.None[[]byte]()
	}

	body := ciphertext[HeaderSize:]
	plain := make([]byte, len(body))
	prev := ciphertext[BlockSize:HeaderSize]
	for off := 0; off < len(body); off += BlockSize {
		cur := body[off : off+BlockSize]
		dst := plain[off : off+BlockSize]
		ks.decryptBlock(dst, cur)
		for i := range dst {
			dst[i] ^= prev[i]
		}
		prev = cur
	}

	return opt.Some(plain)
}
