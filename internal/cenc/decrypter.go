package cenc

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/logging"
	"github.com/clearkeydrm/ckcli/internal/models"
)

const defaultWorkers = 4

// KeyResolver returns the content key for a KID.
type KeyResolver interface {
	Get(kid models.KeyID) (*models.ContentKey, error)
}

// Decrypter removes cenc protection from fragmented MP4 files.
type Decrypter struct {
	keys    KeyResolver
	dec     *crypto.SubsampleDecryptor
	workers int
	log     logging.Logger
}

// Option configures the Decrypter.
type Option func(*Decrypter)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Decrypter) {
		d.log = l
	}
}

// WithWorkers sets how many samples are decrypted concurrently.
func WithWorkers(n int) Option {
	return func(d *Decrypter) {
		d.workers = n
	}
}

// NewDecrypter creates a Decrypter that resolves keys with keys and
// decrypts samples with dec.
func NewDecrypter(keys KeyResolver, dec *crypto.SubsampleDecryptor, opts ...Option) *Decrypter {
	d := &Decrypter{
		keys:    keys,
		dec:     dec,
		workers: defaultWorkers,
		log:     &logging.NullLogger{},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Decrypt reads a fragmented MP4 from r, decrypts it and writes the clear
// file to w.
func (d *Decrypter) Decrypt(ctx context.Context, r io.Reader, w io.Writer) (*models.DecryptReport, error) {
	f, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	report, err := d.DecryptFile(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := f.Encode(w); err != nil {
		return nil, fmt.Errorf("failed to encode mp4: %w", err)
	}

	return report, nil
}

// DecryptFile decrypts every protected fragment of f in place and strips
// the protection boxes. Track protection is read from f.Moov.
func (d *Decrypter) DecryptFile(ctx context.Context, f *mp4.File) (*models.DecryptReport, error) {
	start := time.Now()

	if f.Moov == nil {
		return nil, fmt.Errorf("%w: no moov box", ErrMissingSampleInfo)
	}

	tracks, err := protectedTracks(f.Moov)
	if err != nil {
		return nil, err
	}

	if len(tracks) > 0 && !f.IsFragmented() {
		return nil, ErrNotFragmented
	}

	report := &models.DecryptReport{}
	for _, t := range tracks {
		tr := report.Track(t.id)
		tr.KID = t.kid
		tr.Scheme = t.scheme
	}

	keys := make(map[models.KeyID][]byte)
	for _, t := range tracks {
		if _, ok := keys[t.kid]; ok {
			continue
		}

		key, err := d.keys.Get(t.kid)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", t.id, err)
		}
		keys[t.kid] = key.Key
	}

	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if err := d.decryptFragment(ctx, frag, tracks, keys, report); err != nil {
				return nil, err
			}
			report.Fragments++
		}

		// sidx sizes no longer match the stripped fragments
		seg.Sidx = nil
		seg.Sidxs = nil
	}
	f.Sidx = nil
	f.Sidxs = nil

	if err := stripInit(f.Moov); err != nil {
		return nil, err
	}

	sort.Slice(report.Tracks, func(i, j int) bool {
		return report.Tracks[i].TrackID < report.Tracks[j].TrackID
	})
	report.Duration = time.Since(start)
	d.log.WithField("fragments", report.Fragments).
		WithField("samples", report.Samples()).
		Debugf("decrypted %d bytes in %s", report.EncryptedBytes(), report.Duration)

	return report, nil
}

func (d *Decrypter) decryptFragment(ctx context.Context, frag *mp4.Fragment, tracks map[uint32]*track, keys map[models.KeyID][]byte, report *models.DecryptReport) error {
	if frag.Moof == nil {
		return nil
	}

	var removed uint64
	for _, traf := range frag.Moof.Trafs {
		if traf.Tfhd == nil {
			continue
		}

		trackID := traf.Tfhd.TrackID
		t, protected := tracks[trackID]
		if !protected {
			continue
		}

		if frag.Mdat == nil {
			return fmt.Errorf("%w: track %d fragment has no mdat", ErrMissingSampleInfo, trackID)
		}

		info := sampleInfo{constantIV: t.constantIV}
		senc, err := sencBox(traf, t.ivSize, frag.Moof.StartPos)
		if err != nil {
			return fmt.Errorf("track %d: %w", trackID, err)
		}
		switch {
		case senc != nil:
			info.ivs, info.subsamples = sencInfo(senc)
		case len(t.constantIV) == 0:
			return fmt.Errorf("%w: track %d has no senc box", ErrMissingSampleInfo, trackID)
		}

		full, err := fullSamples(frag, t.trex)
		if err != nil {
			return fmt.Errorf("track %d: %w", trackID, err)
		}

		samples, err := newSamples(payloads(full), info)
		if err != nil {
			return fmt.Errorf("track %d: %w", trackID, err)
		}

		if err := decryptSamples(ctx, d.dec, keys[t.kid], samples, d.workers); err != nil {
			return fmt.Errorf("track %d: %w", trackID, err)
		}

		tr := report.Track(trackID)
		for _, s := range samples {
			tr.Samples++
			tr.Subsamples += len(s.subsamples)
			tr.EncryptedBytes += crypto.EncryptedLength(s.subsamples)
			tr.ClearBytes += uint64(len(s.data)) - crypto.EncryptedLength(s.subsamples)
		}

		removed += traf.RemoveEncryptionBoxes()
		d.log.WithField("track", trackID).Tracef("decrypted %d %s samples", len(samples), t.format)
	}

	_, psshSize := frag.Moof.RemovePsshs()
	removed += psshSize

	shiftDataOffsets(frag, removed)
	return nil
}

// sencBox returns the parsed senc box of traf, or nil if it has none.
func sencBox(traf *mp4.TrafBox, ivSize byte, moofStart uint64) (*mp4.SencBox, error) {
	ok, parsed := traf.ContainsSencBox()
	if !ok {
		return nil, nil
	}

	if !parsed {
		if err := traf.ParseReadSenc(ivSize, moofStart); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingSampleInfo, err)
		}
	}

	if traf.Senc != nil {
		return traf.Senc, nil
	}
	return traf.UUIDSenc.Senc, nil
}

// fullSamples returns the samples of trex's track in frag. mp4ff slices
// mdat without checking that the last sample fits, so a short mdat panics
// inside GetFullSamples.
func fullSamples(frag *mp4.Fragment, trex *mp4.TrexBox) (samples []mp4.FullSample, err error) {
	defer func() {
		if r := recover(); r != nil {
			samples, err = nil, fmt.Errorf("%w: samples run past mdat", crypto.ErrOutOfBounds)
		}
	}()

	samples, err = frag.GetFullSamples(trex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrOutOfBounds, err)
	}
	return samples, nil
}

func payloads(full []mp4.FullSample) [][]byte {
	data := make([][]byte, len(full))
	for i := range full {
		data[i] = full[i].Data
	}
	return data
}

// shiftDataOffsets moves trun data offsets back by the bytes removed from
// moof so they still point at the first sample in mdat.
func shiftDataOffsets(frag *mp4.Fragment, removed uint64) {
	if removed == 0 {
		return
	}

	for _, traf := range frag.Moof.Trafs {
		for _, trun := range traf.Truns {
			if trun.HasDataOffset() {
				trun.DataOffset -= int32(removed)
			}
		}
	}

	if frag.Mdat != nil && frag.Mdat.StartPos > frag.Moof.StartPos {
		frag.Mdat.StartPos -= removed
	}
}

func sencInfo(senc *mp4.SencBox) ([][]byte, [][]crypto.Subsample) {
	ivs := make([][]byte, len(senc.IVs))
	for i, iv := range senc.IVs {
		ivs[i] = iv
	}

	subsamples := make([][]crypto.Subsample, len(senc.SubSamples))
	for i, patterns := range senc.SubSamples {
		subsamples[i] = make([]crypto.Subsample, len(patterns))
		for j, p := range patterns {
			subsamples[i][j] = crypto.Subsample{
				Clear:     uint32(p.BytesOfClearData),
				Encrypted: p.BytesOfProtectedData,
			}
		}
	}

	return ivs, subsamples
}
