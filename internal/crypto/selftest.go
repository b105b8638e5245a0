package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// NIST SP 800-38A F.5.1 CTR-AES128.
const (
	vectorKeyHex        = "2b7e151628aed2a6abf7158809cf4f3c"
	vectorIVHex         = "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff"
	vectorPlaintextHex  = "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411e5fbc1191a0a52eff69f2445df4f9b17ad2b417be66c3710"
	vectorCiphertextHex = "874d6191b620e3261bef6864990db6ce9806f66b7970fdff8617187bb9fffdff5ae4df3edbd5d35e5b4f09020db03eab1e031dda2fbe03d1792170a0f3009cee"
)

// KnownVector is a subsample layout over the 64-byte reference ciphertext.
// Clear spans are filled with a marker pattern.
type KnownVector struct {
	Name       string
	Subsamples []Subsample
}

// KnownVectors are the layouts checked by SelfTest.
var KnownVectors = []KnownVector{
	{Name: "whole buffer", Subsamples: []Subsample{{0, 64}}},
	{Name: "aligned split", Subsamples: []Subsample{{0, 32}, {0, 32}}},
	{Name: "unaligned split", Subsamples: []Subsample{{0, 29}, {0, 35}}},
	{Name: "clear prefix", Subsamples: []Subsample{{8, 64}}},
	{Name: "zero-length spans", Subsamples: []Subsample{{4, 1}, {0, 9}, {11, 20}, {8, 0}, {3, 34}, {2, 0}}},
}

// VectorResult is the outcome of one known vector.
type VectorResult struct {
	Name string
	Err  error
}

// Passed reports whether the vector decrypted to the expected output.
func (r VectorResult) Passed() bool {
	return r.Err == nil
}

// SelfTest decrypts every known vector with c and compares the output
// against the reference plaintext.
func SelfTest(c BlockCipher, opts ...DecryptOption) []VectorResult {
	key, _ := hex.DecodeString(vectorKeyHex)
	iv, _ := hex.DecodeString(vectorIVHex)
	plaintext, _ := hex.DecodeString(vectorPlaintextHex)
	ciphertext, _ := hex.DecodeString(vectorCiphertextHex)

	dec := NewSubsampleDecryptor(c, opts...)
	results := make([]VectorResult, 0, len(KnownVectors))

	for _, v := range KnownVectors {
		src, want := interleave(ciphertext, plaintext, v.Subsamples)

		got, n, err := dec.Decrypt(key, iv, src, v.Subsamples)
		switch {
		case err != nil:
		case n != len(want):
			err = fmt.Errorf("wrote %d bytes, want %d", n, len(want))
		case !bytes.Equal(got, want):
			err = errors.New("output mismatch")
		}

		results = append(results, VectorResult{Name: v.Name, Err: err})
	}

	return results
}

// interleave lays the encrypted and expected streams out per subsample
// with the same clear bytes in both.
func interleave(encrypted, expected []byte, subsamples []Subsample) (src, want []byte) {
	var clear byte
	for _, s := range subsamples {
		for i := uint32(0); i < s.Clear; i++ {
			src = append(src, 0xc0|clear&0x0f)
			want = append(want, 0xc0|clear&0x0f)
			clear++
		}
		src = append(src, encrypted[:s.Encrypted]...)
		want = append(want, expected[:s.Encrypted]...)
		encrypted, expected = encrypted[s.Encrypted:], expected[s.Encrypted:]
	}
	return src, want
}
