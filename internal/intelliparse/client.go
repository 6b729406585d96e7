// Package intelliparse is the HTTP client for the intelliparse analysis server.
package intelliparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intelliparse/console/pkg/models"
)

const maxErrorBody = 64 << 10

// Client is the interface for talking to the analysis server.
type Client interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
	Me(ctx context.Context) (models.Profile, error)
	Analyze(ctx context.Context, req models.AnalysisRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (models.AnalysisJob, error)
	Metrics(ctx context.Context) (map[string]any, error)
	CreateCheckoutSession(ctx context.Context) (string, error)
	EnrollWatchlist(ctx context.Context, e models.WatchlistEnrollment) error
	DeleteWatchlistProfile(ctx context.Context, profileID string) error
	Ready(ctx context.Context) error
}

// CredentialSource supplies the bearer credential for outgoing requests.
// An empty token means the request is sent unauthenticated.
type CredentialSource interface {
	Token() string
}

// StaticToken is a CredentialSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// HTTPClient implements Client using the server's HTTP API.
type HTTPClient struct {
	baseURL string
	creds   CredentialSource
	client  *http.Client
}

// NewHTTPClient creates a new analysis server client. creds may be nil.
func NewHTTPClient(baseURL string, timeout time.Duration, creds CredentialSource) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (models.Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return models.Session{}, fmt.Errorf("encoding login request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return models.Session{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setRequestID(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return models.Session{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Session{}, fmt.Errorf("%w: status %d", ErrInvalidCredentials, resp.StatusCode)
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return models.Session{}, fmt.Errorf("decoding login response: %w", err)
	}

	return loginResp.session(email), nil
}

func (c *HTTPClient) Me(ctx context.Context) (models.Profile, error) {
	resp, err := c.get(ctx, "/me")
	if err != nil {
		return models.Profile{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.Profile{}, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.Profile{}, fmt.Errorf("%w: identity check returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var profile models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return models.Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return profile, nil
}

// Analyze uploads the payload as a multipart form and returns the job id the
// server assigned. Any failure is reported as a *SubmissionError.
func (c *HTTPClient) Analyze(ctx context.Context, req models.AnalysisRequest) (string, error) {
	// The server names its routes images:analyze, audio:analyze and
	// videos:analyze; audio is deliberately singular.
	endpoint := req.Modality.AnalyzeEndpoint()
	if endpoint == "" {
		return "", &SubmissionError{Err: fmt.Errorf("unknown modality %q", req.Modality)}
	}

	body, contentType, err := encodeAnalysisForm(req)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/"+endpoint, body)
	if err != nil {
		return "", &SubmissionError{Err: fmt.Errorf("building request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &SubmissionError{Err: classifyError(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Err: classifyError(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		subErr := &SubmissionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw)), Err: ErrUnexpectedStatus}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			subErr.Err = ErrUnauthorized
		}
		return "", subErr
	}

	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &accepted); err != nil || accepted.JobID == "" {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw)), Err: ErrMissingJobID}
	}

	return accepted.JobID, nil
}

// GetJob fetches one status snapshot. The server either wraps the payload as
// {status, result} or returns the job document flattened; in the latter case
// the whole document is the result once the job is terminal.
func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (models.AnalysisJob, error) {
	resp, err := c.get(ctx, "/v1/jobs/"+url.PathEscape(jobID))
	if err != nil {
		return models.AnalysisJob{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.AnalysisJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.AnalysisJob{}, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.AnalysisJob{}, fmt.Errorf("%w: job status returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisJob{}, classifyError(err)
	}

	return parseJob(jobID, raw)
}

func (c *HTTPClient) Metrics(ctx context.Context) (map[string]any, error) {
	resp, err := c.get(ctx, "/v1/metrics")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: metrics returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var metrics map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	return metrics, nil
}

// CreateCheckoutSession starts a billing checkout and returns the URL the
// user should be sent to. A non-2xx answer carries the server's text.
func (c *HTTPClient) CreateCheckoutSession(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/billing/create-checkout-session", strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %s", ErrBillingUnavailable, strings.TrimSpace(string(text)))
	}

	var checkout struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return "", fmt.Errorf("decoding checkout response: %w", err)
	}
	if checkout.CheckoutURL == "" {
		return "", fmt.Errorf("%w: response carried no checkout_url", ErrBillingUnavailable)
	}
	return checkout.CheckoutURL, nil
}

// EnrollWatchlist registers an identity vector with the server's watchlist.
func (c *HTTPClient) EnrollWatchlist(ctx context.Context, e models.WatchlistEnrollment) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding enrollment: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/watchlist:enroll", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.expectSuccess(httpReq, "watchlist enroll")
}

// DeleteWatchlistProfile removes every vector enrolled under profileID.
func (c *HTTPClient) DeleteWatchlistProfile(ctx context.Context, profileID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/watchlist/"+url.PathEscape(profileID), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.expectSuccess(httpReq, "watchlist delete")
}

// Ready reports whether the analysis server answers at all.
func (c *HTTPClient) Ready(ctx context.Context) error {
	resp, err := c.get(ctx, "/v1/metrics")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: server not ready (status %d)", ErrTransport, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

// expectSuccess sends req and discards the body of a 2xx answer. Rejections
// keep the server's text in the error.
func (c *HTTPClient) expectSuccess(req *http.Request, op string) error {
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnexpectedStatus, op, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	setRequestID(req)
	if c.creds == nil {
		return
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func setRequestID(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// classifyError maps transport-level errors to sentinel errors. Context
// errors stay in the chain so callers can tell cancellation apart.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func encodeAnalysisForm(req models.AnalysisRequest) (io.Reader, string, error) {
	options, err := json.Marshal(req.Options)
	if err != nil {
		return nil, "", fmt.Errorf("encoding options: %w", err)
	}

	filename := req.Filename
	if filename == "" {
		filename = string(req.Modality)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(req.Payload); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}
	if err := mw.WriteField("options", string(options)); err != nil {
		return nil, "", fmt.Errorf("writing options part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func parseJob(jobID string, raw []byte) (models.AnalysisJob, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.AnalysisJob{}, fmt.Errorf("decoding job response: %w", err)
	}

	var status string
	if s, ok := doc["status"]; ok {
		if err := json.Unmarshal(s, &status); err != nil {
			return models.AnalysisJob{}, fmt.Errorf("decoding job status: %w", err)
		}
	}

	job := models.AnalysisJob{
		JobID:  jobID,
		Status: models.ParseJobStatus(status),
	}
	if result, ok := doc["result"]; ok {
		job.Result = result
	} else if job.Status.Terminal() {
		job.Result = raw
	}
	return job, nil
}

// --- server response types ---

type loginResponse struct {
	Identity        string `json:"identity"`
	CredentialToken string `json:"credential_token"`
	Email           string `json:"email"`
	APIKey          string `json:"api_key"`
}

func (r loginResponse) session(email string) models.Session {
	s := models.Session{Identity: r.Identity, CredentialToken: r.CredentialToken}
	if s.Identity == "" {
		s.Identity = r.Email
	}
	if s.Identity == "" {
		s.Identity = email
	}
	if s.CredentialToken == "" {
		s.CredentialToken = r.APIKey
	}
	return s
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
