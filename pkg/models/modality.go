package models

import "fmt"

// Modality is the media category of a submission.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

// Modalities lists every supported modality in display order.
var Modalities = []Modality{ModalityImage, ModalityAudio, ModalityVideo}

// ParseModality validates s as a Modality.
func ParseModality(s string) (Modality, error) {
	switch m := Modality(s); m {
	case ModalityImage, ModalityAudio, ModalityVideo:
		return m, nil
	default:
		return "", fmt.Errorf("unknown modality %q: must be one of image, audio, video", s)
	}
}

// AnalyzeEndpoint returns the server route segment for submissions of this modality.
// The audio route is not pluralized on the server.
func (m Modality) AnalyzeEndpoint() string {
	switch m {
	case ModalityImage:
		return "images:analyze"
	case ModalityAudio:
		return "audio:analyze"
	case ModalityVideo:
		return "videos:analyze"
	default:
		return ""
	}
}

// CheckOptions is a set of independent analysis flags. No flag implies another.
type CheckOptions struct {
	CheckProvenance bool     `json:"check_provenance"`
	CheckWatermarks bool     `json:"check_watermarks"`
	CheckVisual     bool     `json:"check_visual"`
	CheckAudio      bool     `json:"check_audio"`
	FaceWatchlist   []string `json:"face_watchlist,omitempty"`
	VoiceWatchlist  []string `json:"voice_watchlist,omitempty"`
	CallbackURL     string   `json:"callback_url,omitempty"`
}

// AllChecks enables every boolean check, as the playground does by default.
func AllChecks() CheckOptions {
	return CheckOptions{
		CheckProvenance: true,
		CheckWatermarks: true,
		CheckVisual:     true,
		CheckAudio:      true,
	}
}

// AnalysisRequest is one submission. It is built fresh per submission and not
// modified after it has been sent.
type AnalysisRequest struct {
	Modality Modality
	Filename string
	Payload  []byte
	Options  CheckOptions
}
