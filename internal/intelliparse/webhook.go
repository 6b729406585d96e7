package intelliparse

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/intelliparse/console/pkg/models"
)

// SignatureHeader carries the HMAC of a job callback body.
const SignatureHeader = "X-Intelliparse-Signature"

const signaturePrefix = "sha256="

// ErrBadSignature is returned for callbacks whose signature does not match.
var ErrBadSignature = errors.New("invalid webhook signature")

// Sign returns the header value the server sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of body. An empty
// secret never verifies.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrBadSignature)
	}
	given, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return fmt.Errorf("%w: missing %s prefix", ErrBadSignature, signaturePrefix)
	}
	got, err := hex.DecodeString(given)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// DecodeJobEvent reads a job document posted to a callback URL. It is the
// same document GetJob returns, with the job id inside it.
func DecodeJobEvent(raw []byte) (models.AnalysisJob, error) {
	var head struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return models.AnalysisJob{}, fmt.Errorf("decoding job event: %w", err)
	}
	if head.JobID == "" {
		return models.AnalysisJob{}, ErrMissingJobID
	}
	return parseJob(head.JobID, raw)
}
