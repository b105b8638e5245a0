package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfTest(t *testing.T) {
	for backendName, backend := range newTestBackends(t) {
		t.Run(backendName, func(t *testing.T) {
			results := SelfTest(backend)
			require.Len(t, results, len(KnownVectors))

			for i, r := range results {
				assert.Equal(t, KnownVectors[i].Name, r.Name)
				assert.True(t, r.Passed(), "%s: %v", r.Name, r.Err)
			}
		})
	}

	t.Run("strict mode accepts every vector", func(t *testing.T) {
		for _, r := range SelfTest(NewSoftwareCipher(0), WithStrictSubsamples()) {
			assert.NoError(t, r.Err, r.Name)
		}
	})

	t.Run("reports failures per vector", func(t *testing.T) {
		closed := NewEnclaveCipher(NewLoopbackSession())

		for _, r := range SelfTest(closed) {
			assert.False(t, r.Passed())
			assert.ErrorIs(t, r.Err, ErrCipherUnavailable)
		}
	})
}

func TestKnownVectors_CoverReferenceBuffer(t *testing.T) {
	for _, v := range KnownVectors {
		assert.Equal(t, uint64(64), EncryptedLength(v.Subsamples), v.Name)
	}
}

func TestInterleave(t *testing.T) {
	src, want := interleave([]byte{1, 2, 3}, []byte{7, 8, 9}, []Subsample{{2, 1}, {0, 2}})

	assert.Equal(t, []byte{0xc0, 0xc1, 1, 2, 3}, src)
	assert.Equal(t, []byte{0xc0, 0xc1, 7, 8, 9}, want)
}
