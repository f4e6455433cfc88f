//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package cipher

// AES-128 with a permuted key schedule. crypto/aes keeps its expanded
// schedule private, so the rounds are implemented here.

const (
	BlockSize = 16
	KeySize   = 16
	rounds    = 10
)

// keyShuffle is applied to every expanded round key before use:
// shuffled[i] = roundKey[keyShuffle[i]]. It transposes the 4x4 byte matrix.
var keyShuffle = [BlockSize]byte{0, 4, 8, 12, 1, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 15}

// identityShuffle leaves round keys untouched; used to check the AES core.
var identityShuffle = [BlockSize]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

var (
	sbox    [256]byte
	invSbox [256]byte
)

func init() {
	// Walk the multiplicative group with generator 3 to build the S-box.
	p, q := byte(1), byte(1)
	for {
		var carry byte
		if p&0x80 != 0 {
			carry = 0x1B
		}
		p = p ^ (p << 1) ^ carry

		q ^= q << 1
		q ^= q << 2
		q ^= q << 4
		if q&0x80 != 0 {
			q ^= 0x09
		}

		x := q ^ rotl8(q, 1) ^ rotl8(q, 2) ^ rotl8(q, 3) ^ rotl8(q, 4)
		sbox[p] = x ^ 0x63

		if p == 1 {
			break
		}
	}
	sbox[0] = 0x63

	for i := range sbox {
		invSbox[sbox[i]] = byte(i)
	}
}

func rotl8(x byte, n uint) byte {
	return x<<n | x>>(8-n)
}

// xtime multiplies by x in GF(2^8).
func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1B
	}
	return b << 1
}

func gmul(a, b byte) byte {
	var p byte
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		a = xtime(a)
		b >>= 1
	}
	return p
}

// schedule holds the 11 round keys after shuffling.
type schedule [rounds + 1][BlockSize]byte

func expandKey(key Key, shuffle [BlockSize]byte) *schedule {
	var w [4 * (rounds + 1)][4]byte
	for i := 0; i < 4; i++ {
		copy(w[i][:], key[4*i:4*i+4])
	}

	rcon := byte(1)
	for i := 4; i < len(w); i++ {
		t := w[i-1]
		if i%4 == 0 {
			t = [4]byte{sbox[t[1]] ^ rcon, sbox[t[2]], sbox[t[3]], sbox[t[0]]}
			rcon = xtime(rcon)
		}
		for j := 0; j < 4; j++ {
			w[i][j] = w[i-4][j] ^ t[j]
		}
	}

	s := new(schedule)
	for r := 0; r <= rounds; r++ {
		var rk [BlockSize]byte
		for c := 0; c < 4; c++ {
			copy(rk[4*c:4*c+4], w[4*r+c][:])
		}
		for i := range s[r] {
			s[r][i] = rk[shuffle[i]]
		}
	}
	return s
}

func addRoundKey(state *[BlockSize]byte, rk *[BlockSize]byte) {
	for i := range state {
		state[i] ^= rk[i]
	}
}

func subBytes(state *[BlockSize]byte, box *[256]byte) {
	for i := range state {
		state[i] = box[state[i]]
	}
}

// State is column-major: state[row + 4*col].
func shiftRows(state *[BlockSize]byte) {
	old := *state
	for r := 1; r < 4; r++ {
		for c := 0; c < 4; c++ {
			state[r+4*c] = old[r+4*((c+r)%4)]
		}
	}
}

func invShiftRows(state *[BlockSize]byte) {
	old := *state
	for r := 1; r < 4; r++ {
		for c := 0; c < 4; c++ {
			state[r+4*((c+r)%4)] = old[r+4*c]
		}
	}
}

func mixColumns(state *[BlockSize]byte) {
	for c := 0; c < 4; c++ {
		a0, a1, a2, a3 := state[4*c], state[4*c+1], state[4*c+2], state[4*c+3]
		state[4*c] = xtime(a0) ^ (xtime(a1) ^ a1) ^ a2 ^ a3
		state[4*c+1] = a0 ^ xtime(a1) ^ (xtime(a2) ^ a2) ^ a3
		state[4*c+2] = a0 ^ a1 ^ xtime(a2) ^ (xtime(a3) ^ a3)
		state[4*c+3] = (xtime(a0) ^ a0) ^ a1 ^ a2 ^ xtime(a3)
	}
}

func invMixColumns(state *[BlockSize]byte) {
	for c := 0; c < 4; c++ {
		a0, a1, a2, a3 := state[4*c], state[4*c+1], state[4*c+2], state[4*c+3]
		state[4*c] = gmul(a0, 14) ^ gmul(a1, 11) ^ gmul(a2, 13) ^ gmul(a3, 9)
		state[4*c+1] = gmul(a0, 9) ^ gmul(a1, 14) ^ gmul(a2, 11) ^ gmul(a3, 13)
		state[4*c+2] = gmul(a0, 13) ^ gmul(a1, 9) ^ gmul(a2, 14) ^ gmul(a3, 11)
		state[4*c+3] = gmul(a0, 11) ^ gmul(a1, 13) ^ gmul(a2, 9) ^ gmul(a3, 14)
	}
}

func (s *schedule) encryptBlock(dst, src []byte) {
	var state [BlockSize]byte
	copy(state[:], src)

	addRoundKey(&state, &s[0])
	for r := 1; r < rounds; r++ {
		subBytes(&state, &sbox)
		shiftRows(&state)
		mixColumns(&state)
		addRoundKey(&state, &s[r])
	}
	subBytes(&state, &sbox)
	shiftRows(&state)
	addRoundKey(&state, &s[rounds])

	copy(dst, state[:])
}

func (s *schedule) decryptBlock(dst, src []byte) {
	var state [BlockSize]byte
	copy(state[:], src)

	addRoundKey(&state, &s[rounds])
	for r := rounds - 1; r >= 1; r-- {
		invShiftRows(&state)
		subBytes(&state, &invSbox)
		addRoundKey(&state, &s[r])
		invMixColumns(&state)
	}
	invShiftRows(&state)
	subBytes(&state, &invSbox)
	addRoundKey(&state, &s[0])

	copy(dst, state[:])
}
