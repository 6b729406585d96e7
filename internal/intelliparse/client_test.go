package intelliparse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/intelliparse/console/pkg/models"
)

// --- helpers ---

func analysisServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, 5*time.Second, StaticToken("tok_123"))
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a bearer credential")
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ana@example.com" || body["password"] != "hunter2" {
			t.Errorf("unexpected body: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"identity":"ana@example.com","credential_token":"sk_abc","plan":"pro"}`))
	})

	s, err := newTestClient(t, ts.URL).Login(context.Background(), "ana@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Identity != "ana@example.com" || s.CredentialToken != "sk_abc" {
		t.Errorf("unexpected session: %+v", s)
	}
}

func TestLogin_FallsBackToEmailAndAPIKey(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"ana@example.com","api_key":"sk_0a1b2c3"}`))
	})

	s, err := newTestClient(t, ts.URL).Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Identity != "ana@example.com" || s.CredentialToken != "sk_0a1b2c3" {
		t.Errorf("unexpected session: %+v", s)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := newTestClient(t, ts.URL).Login(context.Background(), "ana@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got: %v", err)
	}
}

// --- Me ---

func TestMe_SendsBearerAndDecodesProfile(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok_123" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing X-Request-ID")
		}
		w.Write([]byte(`{"email":"ana@example.com","plan":"starter","usage":{"today":42}}`))
	})

	p, err := newTestClient(t, ts.URL).Me(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Email != "ana@example.com" || p.Plan != "starter" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if _, ok := p.Fields["usage"]; !ok {
		t.Errorf("expected unknown fields to be kept")
	}
}

func TestMe_Unauthorized(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := newTestClient(t, ts.URL).Me(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got: %v", err)
	}
}

func TestMe_NoCredentials(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no authorization header")
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := NewHTTPClient(ts.URL, 5*time.Second, nil)
	if _, err := c.Me(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got: %v", err)
	}
}

// --- Analyze ---

func TestAnalyze_MultipartRequest(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images:analyze" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "\x89PNG" {
			t.Errorf("unexpected payload: %q", data)
		}
		if hdr.Filename != "cat.png" {
			t.Errorf("unexpected filename: %s", hdr.Filename)
		}

		var opts models.CheckOptions
		if err := json.Unmarshal([]byte(r.FormValue("options")), &opts); err != nil {
			t.Fatalf("decoding options: %v", err)
		}
		if !opts.CheckProvenance || !opts.CheckWatermarks || opts.CheckVisual || opts.CheckAudio {
			t.Errorf("unexpected options: %+v", opts)
		}

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"job_id":"job_abc","status":"queued"}`))
	})

	jobID, err := newTestClient(t, ts.URL).Analyze(context.Background(), models.AnalysisRequest{
		Modality: models.ModalityImage,
		Filename: "cat.png",
		Payload:  []byte("\x89PNG"),
		Options:  models.CheckOptions{CheckProvenance: true, CheckWatermarks: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job_abc" {
		t.Errorf("expected job_abc, got %s", jobID)
	}
}

func TestAnalyze_EndpointPerModality(t *testing.T) {
	var paths []string
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"job_id":"job_1"}`))
	})

	c := newTestClient(t, ts.URL)
	for _, m := range models.Modalities {
		if _, err := c.Analyze(context.Background(), models.AnalysisRequest{Modality: m, Payload: []byte("x")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := []string{"/v1/images:analyze", "/v1/audio:analyze", "/v1/videos:analyze"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, paths)
	}
}

func TestAnalyze_RejectedCarriesRawText(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid options JSON"}`))
	})

	_, err := newTestClient(t, ts.URL).Analyze(context.Background(), models.AnalysisRequest{
		Modality: models.ModalityAudio,
		Payload:  []byte("RIFF"),
	})

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got: %v", err)
	}
	if subErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected status: %d", subErr.StatusCode)
	}
	if subErr.Body != `{"detail":"Invalid options JSON"}` {
		t.Errorf("unexpected body: %s", subErr.Body)
	}
}

func TestAnalyze_MissingJobID(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"queued"}`))
	})

	_, err := newTestClient(t, ts.URL).Analyze(context.Background(), models.AnalysisRequest{
		Modality: models.ModalityVideo,
		Payload:  []byte("mp4"),
	})
	if !errors.Is(err, ErrMissingJobID) {
		t.Errorf("expected ErrMissingJobID, got: %v", err)
	}
}

func TestAnalyze_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	_, err := newTestClient(t, ts.URL).Analyze(context.Background(), models.AnalysisRequest{
		Modality: models.ModalityImage,
		Payload:  []byte("x"),
	})

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got: %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport in chain, got: %v", err)
	}
}

// --- GetJob ---

func TestGetJob_WrappedResult(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs/job_abc" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"completed","result":{"score":0.92}}`))
	})

	job, err := newTestClient(t, ts.URL).GetJob(context.Background(), "job_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.JobID != "job_abc" || job.Status != models.JobStatusCompleted {
		t.Errorf("unexpected job: %+v", job)
	}
	if string(job.Result) != `{"score":0.92}` {
		t.Errorf("unexpected result: %s", job.Result)
	}
}

func TestGetJob_FlattenedDocument(t *testing.T) {
	doc := `{"job_id":"job_abc","status":"completed","final_score":0.4,"label":"uncertain"}`
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(doc))
	})

	job, err := newTestClient(t, ts.URL).GetJob(context.Background(), "job_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(job.Result) != doc {
		t.Errorf("expected whole document as result, got %s", job.Result)
	}
}

func TestGetJob_RunningHasNoResult(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job_id":"job_abc","status":"running","provenance":{}}`))
	})

	job, err := newTestClient(t, ts.URL).GetJob(context.Background(), "job_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != models.JobStatusProcessing {
		t.Errorf("expected processing, got %s", job.Status)
	}
	if job.Result != nil {
		t.Errorf("expected no result for running job, got %s", job.Result)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := newTestClient(t, ts.URL).GetJob(context.Background(), "job_missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got: %v", err)
	}
}

func TestGetJob_ContextCanceled(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, ts.URL).GetJob(ctx, "job_abc")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got: %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport in chain, got: %v", err)
	}
}

func TestGetJob_Timeout(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	c := NewHTTPClient(ts.URL, 50*time.Millisecond, nil)
	_, err := c.GetJob(context.Background(), "job_abc")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got: %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTimeout to be a transport error, got: %v", err)
	}
}

// --- Metrics / billing ---

func TestMetrics_ArbitraryDocument(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vision":{"auc":0.95},"calibration":{"ece":0.03}}`))
	})

	m, err := newTestClient(t, ts.URL).Metrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 2 {
		t.Errorf("expected 2 top-level keys, got %d", len(m))
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/billing/create-checkout-session" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"checkout_url":"https://checkout.example/session/1"}`))
	})

	u, err := newTestClient(t, ts.URL).CreateCheckoutSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != "https://checkout.example/session/1" {
		t.Errorf("unexpected url: %s", u)
	}
}

func TestCreateCheckoutSession_NotConfigured(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("STRIPE_SECRET_KEY not set\n"))
	})

	_, err := newTestClient(t, ts.URL).CreateCheckoutSession(context.Background())
	if !errors.Is(err, ErrBillingUnavailable) {
		t.Fatalf("expected ErrBillingUnavailable, got: %v", err)
	}
	if !strings.Contains(err.Error(), "STRIPE_SECRET_KEY not set") {
		t.Errorf("expected server text in error, got: %v", err)
	}
}

func TestEnrollWatchlist(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/watchlist:enroll" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok_123" {
			t.Errorf("missing bearer credential")
		}
		var got models.WatchlistEnrollment
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if got.Type != models.WatchlistFace || got.ProfileID != "p-1" || len(got.Vector) != 3 {
			t.Errorf("unexpected enrollment: %+v", got)
		}
		w.Write([]byte(`{"profile_id":"p-1","type":"face"}`))
	})

	err := newTestClient(t, ts.URL).EnrollWatchlist(context.Background(), models.WatchlistEnrollment{
		Type: models.WatchlistFace, ProfileID: "p-1", Vector: []float64{0.1, 0.2, 0.3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnrollWatchlist_RejectedCarriesText(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"type must be face or voice"}`))
	})

	err := newTestClient(t, ts.URL).EnrollWatchlist(context.Background(), models.WatchlistEnrollment{})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got: %v", err)
	}
	if !strings.Contains(err.Error(), "type must be face or voice") {
		t.Errorf("expected server text in error, got: %v", err)
	}
}

func TestDeleteWatchlistProfile(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.EscapedPath() != "/v1/watchlist/p%2F1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.EscapedPath())
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := newTestClient(t, ts.URL).DeleteWatchlistProfile(context.Background(), "p/1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteWatchlistProfile_Unauthorized(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := newTestClient(t, ts.URL).DeleteWatchlistProfile(context.Background(), "p-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got: %v", err)
	}
}

func TestReady_ServerError(t *testing.T) {
	ts := analysisServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if err := newTestClient(t, ts.URL).Ready(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got: %v", err)
	}
}
