package models

import "time"

// Scheme is a four-character CENC protection scheme.
type Scheme string

const (
	SchemeCENC Scheme = "cenc"
	SchemeCBCS Scheme = "cbcs"
)

// TrackReport summarises the decryption of one protected track.
type TrackReport struct {
	TrackID        uint32 `json:"track_id"`
	KID            KeyID  `json:"kid"`
	Scheme         Scheme `json:"scheme"`
	Samples        int    `json:"samples"`
	Subsamples     int    `json:"subsamples"`
	ClearBytes     uint64 `json:"clear_bytes"`
	EncryptedBytes uint64 `json:"encrypted_bytes"`
}

// DecryptReport summarises a whole file decryption.
type DecryptReport struct {
	Source    string        `json:"source"`
	Fragments int           `json:"fragments"`
	Tracks    []TrackReport `json:"tracks"`
	Duration  time.Duration `json:"duration"`
}

// Samples returns the number of samples decrypted across all tracks.
func (r DecryptReport) Samples() int {
	n := 0
	for _, t := range r.Tracks {
		n += t.Samples
	}
	return n
}

// EncryptedBytes returns the number of bytes run through the keystream.
func (r DecryptReport) EncryptedBytes() uint64 {
	var n uint64
	for _, t := range r.Tracks {
		n += t.EncryptedBytes
	}
	return n
}

// Track returns the report for trackID, adding one if absent.
func (r *DecryptReport) Track(trackID uint32) *TrackReport {
	for i := range r.Tracks {
		if r.Tracks[i].TrackID == trackID {
			return &r.Tracks[i]
		}
	}
	r.Tracks = append(r.Tracks, TrackReport{TrackID: trackID})
	return &r.Tracks[len(r.Tracks)-1]
}
