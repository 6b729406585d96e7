package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/intelliparse/console/pkg/models"
)

// fakeServer satisfies Analyzer and JobFetcher for testing.
type fakeServer struct {
	mu          sync.Mutex
	analyzeFunc func(ctx context.Context, req models.AnalysisRequest) (string, error)
	getJobFunc  func(ctx context.Context, jobID string) (models.AnalysisJob, error)
	submissions []models.AnalysisRequest
	polls       map[string]int
}

func (f *fakeServer) Analyze(ctx context.Context, req models.AnalysisRequest) (string, error) {
	f.mu.Lock()
	f.submissions = append(f.submissions, req)
	fn := f.analyzeFunc
	f.mu.Unlock()
	if fn == nil {
		return "job_default", nil
	}
	return fn(ctx, req)
}

func (f *fakeServer) GetJob(ctx context.Context, jobID string) (models.AnalysisJob, error) {
	f.mu.Lock()
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[jobID]++
	fn := f.getJobFunc
	f.mu.Unlock()
	if fn == nil {
		return models.AnalysisJob{JobID: jobID, Status: models.JobStatusCompleted}, nil
	}
	return fn(ctx, jobID)
}

func (f *fakeServer) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

func (f *fakeServer) pollCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[jobID]
}

// statusSequence answers successive polls with the given statuses, repeating the last one.
func statusSequence(result string, statuses ...models.JobStatus) func(context.Context, string) (models.AnalysisJob, error) {
	var mu sync.Mutex
	i := 0
	return func(_ context.Context, jobID string) (models.AnalysisJob, error) {
		mu.Lock()
		defer mu.Unlock()
		s := statuses[min(i, len(statuses)-1)]
		i++
		job := models.AnalysisJob{JobID: jobID, Status: s}
		if s.Terminal() {
			job.Result = []byte(result)
		}
		return job, nil
	}
}

func fastPolicy(attempts int) PollPolicy {
	return PollPolicy{
		Interval:    time.Millisecond,
		Multiplier:  1,
		MaxInterval: time.Millisecond,
		MaxAttempts: attempts,
	}
}

func collect(t *testing.T, p *Poller, ctx context.Context, jobID string) ([]models.AnalysisJob, error) {
	t.Helper()
	var (
		snaps []models.AnalysisJob
		last  error
	)
	for job, err := range p.Poll(ctx, jobID) {
		if err != nil {
			last = err
			continue
		}
		snaps = append(snaps, job)
	}
	return snaps, last
}
