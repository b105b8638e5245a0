package cenc

import (
	"bytes"
	"context"
	"testing"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKID = models.KeyID{0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89}
	testIV  = []byte{0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7}
)

const clearKeySystemID = "1077efec-c0b2-4d02-ace3-3c1e52e2fb4b"

func testSinf(scheme string) *mp4.SinfBox {
	return &mp4.SinfBox{
		Frma: &mp4.FrmaBox{DataFormat: "mp4a"},
		Schm: &mp4.SchmBox{SchemeType: scheme},
		Schi: &mp4.SchiBox{
			Tenc: &mp4.TencBox{
				DefaultKID:             mp4.UUID(testKID[:]),
				DefaultPerSampleIVSize: 8,
			},
		},
	}
}

func TestParseSinf(t *testing.T) {
	t.Run("cenc", func(t *testing.T) {
		tr, err := parseSinf(1, testSinf("cenc"))
		require.NoError(t, err)

		assert.Equal(t, uint32(1), tr.id)
		assert.Equal(t, testKID, tr.kid)
		assert.Equal(t, models.SchemeCENC, tr.scheme)
		assert.Equal(t, "mp4a", tr.format)
		assert.Equal(t, byte(8), tr.ivSize)
	})

	t.Run("missing frma", func(t *testing.T) {
		sinf := testSinf("cenc")
		sinf.Frma = nil

		_, err := parseSinf(1, sinf)
		assert.ErrorIs(t, err, ErrMissingSampleInfo)
	})

	t.Run("missing schm defaults to cenc", func(t *testing.T) {
		sinf := testSinf("cenc")
		sinf.Schm = nil

		tr, err := parseSinf(2, sinf)
		require.NoError(t, err)
		assert.Equal(t, models.SchemeCENC, tr.scheme)
	})

	t.Run("cbcs is rejected", func(t *testing.T) {
		_, err := parseSinf(1, testSinf("cbcs"))
		assert.ErrorIs(t, err, ErrUnsupportedScheme)
	})

	t.Run("missing tenc", func(t *testing.T) {
		sinf := testSinf("cenc")
		sinf.Schi = nil

		_, err := parseSinf(1, sinf)
		assert.ErrorIs(t, err, ErrMissingSampleInfo)
	})

	t.Run("short default KID", func(t *testing.T) {
		sinf := testSinf("cenc")
		sinf.Schi.Tenc.DefaultKID = mp4.UUID(testKID[:4])

		_, err := parseSinf(1, sinf)
		assert.ErrorIs(t, err, ErrMissingSampleInfo)
	})
}

func TestSencInfo(t *testing.T) {
	senc := &mp4.SencBox{
		IVs: []mp4.InitializationVector{{1, 2, 3, 4, 5, 6, 7, 8}},
		SubSamples: [][]mp4.SubSamplePattern{
			{{BytesOfClearData: 8, BytesOfProtectedData: 64}, {BytesOfClearData: 0, BytesOfProtectedData: 32}},
		},
	}

	ivs, subsamples := sencInfo(senc)

	assert.Equal(t, [][]byte{{1, 2, 3, 4, 5, 6, 7, 8}}, ivs)
	assert.Equal(t, [][]crypto.Subsample{{{8, 64}, {0, 32}}}, subsamples)
}

type mapResolver map[models.KeyID][]byte

func (m mapResolver) Get(kid models.KeyID) (*models.ContentKey, error) {
	key, ok := m[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &models.ContentKey{KID: kid, Key: key}, nil
}

// protectedInit builds a single track AAC init segment protected with
// cenc under testKID.
func protectedInit(t *testing.T) (*mp4.InitSegment, *mp4.InitProtectData) {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(48000, "audio", "en")
	require.NoError(t, init.Moov.Trak.SetAACDescriptor(aac.AAClc, 48000))

	pssh, err := mp4.NewPsshBox(clearKeySystemID, []string{testKID.String()}, nil)
	require.NoError(t, err)

	ipd, err := mp4.InitProtect(init, testKey, testIV, "cenc", mp4.UUID(testKID[:]), []*mp4.PsshBox{pssh})
	require.NoError(t, err)
	return init, ipd
}

// protectedFile encodes a protected init segment followed by one encrypted
// fragment per entry of fragments. It returns the file and the clear
// samples in order.
func protectedFile(t *testing.T, fragments ...[]int) ([]byte, [][]byte) {
	t.Helper()

	init, ipd := protectedInit(t)

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))

	var plain [][]byte
	var decodeTime uint64
	for i, sizes := range fragments {
		frag, err := mp4.CreateFragment(uint32(i+1), 1)
		require.NoError(t, err)

		for _, size := range sizes {
			data := randomBytes(t, size)
			plain = append(plain, bytes.Clone(data))
			frag.AddFullSample(mp4.FullSample{
				Sample:     mp4.NewSample(mp4.SyncSampleFlags, 1024, uint32(size), 0),
				DecodeTime: decodeTime,
				Data:       data,
			})
			decodeTime += 1024
		}

		require.NoError(t, mp4.EncryptFragment(frag, testKey, testIV, ipd))
		require.NoError(t, frag.Encode(&buf))
	}

	return buf.Bytes(), plain
}

func decodedSamples(t *testing.T, f *mp4.File) [][]byte {
	t.Helper()

	var samples [][]byte
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			full, err := frag.GetFullSamples(nil)
			require.NoError(t, err)
			for _, s := range full {
				samples = append(samples, s.Data)
			}
		}
	}
	return samples
}

func TestDecrypter_RoundTrip(t *testing.T) {
	input, plain := protectedFile(t, []int{37, 100, 16}, []int{250, 1})

	in, err := mp4.DecodeFile(bytes.NewReader(input))
	require.NoError(t, err)
	require.NotEqual(t, plain, decodedSamples(t, in), "samples are encrypted")

	dec := crypto.NewSubsampleDecryptor(crypto.NewSoftwareCipher(0))
	d := NewDecrypter(mapResolver{testKID: testKey}, dec, WithWorkers(2))

	var out bytes.Buffer
	report, err := d.Decrypt(context.Background(), bytes.NewReader(input), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fragments)
	require.Len(t, report.Tracks, 1)
	assert.Equal(t, uint32(1), report.Tracks[0].TrackID)
	assert.Equal(t, testKID, report.Tracks[0].KID)
	assert.Equal(t, 5, report.Tracks[0].Samples)
	assert.Equal(t, uint64(404), report.Tracks[0].EncryptedBytes)
	assert.Zero(t, report.Tracks[0].ClearBytes)

	f, err := mp4.DecodeFile(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	t.Run("samples are clear", func(t *testing.T) {
		assert.Equal(t, plain, decodedSamples(t, f))
	})

	t.Run("sample entry restored", func(t *testing.T) {
		entry := f.Moov.Trak.Mdia.Minf.Stbl.Stsd.Children[0]
		assert.Equal(t, "mp4a", entry.Type())

		audio, ok := entry.(*mp4.AudioSampleEntryBox)
		require.True(t, ok)
		assert.Nil(t, audio.Sinf)
		assert.False(t, f.Moov.IsEncrypted(1))
	})

	t.Run("protection boxes removed", func(t *testing.T) {
		assert.Nil(t, f.Moov.Pssh)

		for _, seg := range f.Segments {
			for _, frag := range seg.Fragments {
				traf := frag.Moof.Traf
				assert.Nil(t, traf.Senc)
				assert.Nil(t, traf.Saiz)
				assert.Nil(t, traf.Saio)
				assert.Nil(t, frag.Moof.Pssh)

				hasSenc, _ := traf.ContainsSencBox()
				assert.False(t, hasSenc)
			}
		}
	})
}

func TestDecrypter_MissingKey(t *testing.T) {
	input, _ := protectedFile(t, []int{32})

	dec := crypto.NewSubsampleDecryptor(crypto.NewSoftwareCipher(0))
	d := NewDecrypter(mapResolver{}, dec)

	var out bytes.Buffer
	_, err := d.Decrypt(context.Background(), bytes.NewReader(input), &out)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Zero(t, out.Len())
}

func TestDecrypter_NotFragmented(t *testing.T) {
	init, _ := protectedInit(t)

	dec := crypto.NewSubsampleDecryptor(crypto.NewSoftwareCipher(0))
	d := NewDecrypter(mapResolver{testKID: testKey}, dec)

	f := mp4.NewFile()
	f.Moov = init.Moov

	_, err := d.DecryptFile(context.Background(), f)
	assert.ErrorIs(t, err, ErrNotFragmented)
	assert.True(t, f.Moov.IsEncrypted(1), "protection is left in place")
}

func TestDecrypter_ShortMdat(t *testing.T) {
	input, _ := protectedFile(t, []int{37, 100})

	f, err := mp4.DecodeFile(bytes.NewReader(input))
	require.NoError(t, err)

	mdat := f.Segments[0].Fragments[0].Mdat
	short := make([]byte, 40)
	copy(short, mdat.Data)
	mdat.Data = short

	dec := crypto.NewSubsampleDecryptor(crypto.NewSoftwareCipher(0))
	d := NewDecrypter(mapResolver{testKID: testKey}, dec)

	_, err = d.DecryptFile(context.Background(), f)
	assert.ErrorIs(t, err, crypto.ErrOutOfBounds)
}

func TestDecrypter(t *testing.T) {
	dec := crypto.NewSubsampleDecryptor(crypto.NewSoftwareCipher(0))
	d := NewDecrypter(mapResolver{testKID: testKey}, dec, WithWorkers(2))

	t.Run("rejects non mp4 input", func(t *testing.T) {
		var out bytes.Buffer
		_, err := d.Decrypt(context.Background(), bytes.NewReader([]byte("not an mp4 file")), &out)
		assert.ErrorIs(t, err, ErrMalformedInput)
		assert.Zero(t, out.Len())
	})

	t.Run("requires moov", func(t *testing.T) {
		_, err := d.DecryptFile(context.Background(), &mp4.File{})
		assert.ErrorIs(t, err, ErrMissingSampleInfo)
	})

	assert.Equal(t, 2, d.workers)
}
