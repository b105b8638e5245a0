package cenc

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/clearkeydrm/ckcli/internal/models"
)

// track is the protection info of one track from its tenc box.
type track struct {
	id         uint32
	kid        models.KeyID
	scheme     models.Scheme
	format     string
	ivSize     byte
	constantIV []byte
	trex       *mp4.TrexBox
}

// protectedTracks reads the sinf of every protected sample entry in moov.
func protectedTracks(moov *mp4.MoovBox) (map[uint32]*track, error) {
	tracks := make(map[uint32]*track)

	for _, trak := range moov.Traks {
		if trak.Tkhd == nil {
			continue
		}

		for _, entry := range sampleEntries(trak) {
			sinf := entrySinf(entry)
			if sinf == nil {
				continue
			}

			t, err := parseSinf(trak.Tkhd.TrackID, sinf)
			if err != nil {
				return nil, err
			}
			tracks[t.id] = t
		}
	}

	for id, t := range tracks {
		if moov.Mvex != nil {
			t.trex, _ = moov.Mvex.GetTrex(id)
		}
		if t.trex == nil {
			// GetFullSamples picks the traf by trex track ID.
			t.trex = &mp4.TrexBox{TrackID: id}
		}
	}

	return tracks, nil
}

func parseSinf(trackID uint32, sinf *mp4.SinfBox) (*track, error) {
	t := &track{id: trackID, scheme: models.SchemeCENC}

	if sinf.Schm != nil {
		t.scheme = models.Scheme(sinf.Schm.SchemeType)
	}
	if t.scheme != models.SchemeCENC {
		return nil, fmt.Errorf("%w: track %d uses %q", ErrUnsupportedScheme, trackID, t.scheme)
	}

	if sinf.Frma == nil || sinf.Frma.DataFormat == "" {
		return nil, fmt.Errorf("%w: track %d has no frma box", ErrMissingSampleInfo, trackID)
	}
	t.format = sinf.Frma.DataFormat

	if sinf.Schi == nil || sinf.Schi.Tenc == nil {
		return nil, fmt.Errorf("%w: track %d has no tenc box", ErrMissingSampleInfo, trackID)
	}

	tenc := sinf.Schi.Tenc
	if len(tenc.DefaultKID) != models.KeyIDSize {
		return nil, fmt.Errorf("%w: track %d has a %d byte default KID", ErrMissingSampleInfo, trackID, len(tenc.DefaultKID))
	}

	copy(t.kid[:], tenc.DefaultKID)
	t.ivSize = tenc.DefaultPerSampleIVSize
	t.constantIV = tenc.DefaultConstantIV
	return t, nil
}

// sampleEntries returns the sample entries of trak that can carry a sinf.
func sampleEntries(trak *mp4.TrakBox) []mp4.Box {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil
	}

	var entries []mp4.Box
	for _, box := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch box.(type) {
		case *mp4.VisualSampleEntryBox, *mp4.AudioSampleEntryBox:
			entries = append(entries, box)
		}
	}
	return entries
}

func entrySinf(entry mp4.Box) *mp4.SinfBox {
	switch e := entry.(type) {
	case *mp4.VisualSampleEntryBox:
		return e.Sinf
	case *mp4.AudioSampleEntryBox:
		return e.Sinf
	}
	return nil
}

// stripInit removes the pssh boxes from moov and turns every encv or enca
// sample entry back into its original format.
func stripInit(moov *mp4.MoovBox) error {
	moov.RemovePsshs()

	for _, trak := range moov.Traks {
		if trak.Tkhd == nil {
			continue
		}

		for _, entry := range sampleEntries(trak) {
			var err error
			switch e := entry.(type) {
			case *mp4.VisualSampleEntryBox:
				if e.Type() == "encv" {
					_, err = e.RemoveEncryption()
				}
			case *mp4.AudioSampleEntryBox:
				if e.Type() == "enca" {
					_, err = e.RemoveEncryption()
				}
			}
			if err != nil {
				return fmt.Errorf("%w: track %d: %v", ErrMissingSampleInfo, trak.Tkhd.TrackID, err)
			}
		}
	}

	return nil
}
