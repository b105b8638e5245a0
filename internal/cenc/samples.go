package cenc

import (
	"context"
	"fmt"

	"github.com/clearkeydrm/ckcli/internal/crypto"
	"golang.org/x/sync/errgroup"
)

// sample is one protected sample inside mdat.
type sample struct {
	index      int
	data       []byte
	iv         []byte
	subsamples []crypto.Subsample
}

// sampleInfo is the per-sample encryption metadata of one traf.
type sampleInfo struct {
	ivs        [][]byte
	subsamples [][]crypto.Subsample
	constantIV []byte
}

// newSamples pairs each sample payload with its IV and subsample layout.
// A sample without subsamples is encrypted as a whole.
func newSamples(payloads [][]byte, info sampleInfo) ([]sample, error) {
	samples := make([]sample, 0, len(payloads))

	for i, data := range payloads {
		var rawIV []byte
		switch {
		case i < len(info.ivs) && len(info.ivs[i]) > 0:
			rawIV = info.ivs[i]
		case len(info.constantIV) > 0:
			rawIV = info.constantIV
		default:
			return nil, fmt.Errorf("%w: no IV for sample %d", ErrMissingSampleInfo, i)
		}

		iv, err := crypto.PadIV(rawIV)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}

		s := sample{index: i, data: data, iv: iv}
		if i < len(info.subsamples) && len(info.subsamples[i]) > 0 {
			s.subsamples = info.subsamples[i]
		} else {
			s.subsamples = []crypto.Subsample{{Encrypted: uint32(len(data))}}
		}

		samples = append(samples, s)
	}

	return samples, nil
}

// decryptSamples decrypts every sample in place, at most workers at a time.
// The keystream restarts for each sample.
func decryptSamples(ctx context.Context, dec *crypto.SubsampleDecryptor, key []byte, samples []sample, workers int) error {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, s := range samples {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if _, err := dec.DecryptTo(key, s.iv, s.data, s.data, s.subsamples); err != nil {
				return fmt.Errorf("sample %d: %w", s.index, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
