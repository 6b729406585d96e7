package models

import (
	"errors"
	"fmt"
	"strings"
)

// WatchlistType is the kind of identity vector a watchlist profile holds.
type WatchlistType string

const (
	WatchlistFace  WatchlistType = "face"
	WatchlistVoice WatchlistType = "voice"
)

// WatchlistEnrollment registers an identity vector under a profile id so
// later analyses can report matches against it.
type WatchlistEnrollment struct {
	Type      WatchlistType `json:"type"`
	ProfileID string        `json:"profile_id"`
	Vector    []float64     `json:"vector"`
}

// Validate checks the enrollment before it is sent to the server.
func (e WatchlistEnrollment) Validate() error {
	switch e.Type {
	case WatchlistFace, WatchlistVoice:
	default:
		return fmt.Errorf("unknown watchlist type %q: must be face or voice", e.Type)
	}
	if strings.TrimSpace(e.ProfileID) == "" {
		return errors.New("profile_id is required")
	}
	if len(e.Vector) == 0 {
		return errors.New("vector must not be empty")
	}
	return nil
}
