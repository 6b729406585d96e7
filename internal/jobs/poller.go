package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/intelliparse/console/internal/cache"
	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

// JobFetcher returns one status snapshot of a job.
type JobFetcher interface {
	GetJob(ctx context.Context, jobID string) (models.AnalysisJob, error)
}

// PollPolicy bounds and paces polling. A Multiplier of 1 or less gives a
// fixed delay of Interval between checks. Polling stops at whichever of
// MaxAttempts or MaxElapsed is reached first; zero disables that bound.
type PollPolicy struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	Jitter      float64
	MaxAttempts int
	MaxElapsed  time.Duration
}

// DefaultPollPolicy starts with the one second re-check the dashboard
// always used and backs off from there.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    time.Second,
		Multiplier:  1.5,
		MaxInterval: 10 * time.Second,
		MaxAttempts: 30,
		MaxElapsed:  2 * time.Minute,
	}
}

func (p PollPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Interval
	exp.Multiplier = max(p.Multiplier, 1)
	exp.MaxInterval = max(p.MaxInterval, p.Interval)
	exp.RandomizationFactor = p.Jitter
	exp.MaxElapsedTime = p.MaxElapsed

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1))
	}
	b.Reset()
	return b
}

// Poller queries job status until the job is terminal or the policy bound
// is exhausted. Terminal snapshots are cached so that re-polling a finished
// job is answered locally with the same bytes.
type Poller struct {
	client   JobFetcher
	cache    cache.Cache
	policy   PollPolicy
	cacheTTL time.Duration
}

// NewPoller creates a Poller. c may be nil to disable terminal caching.
func NewPoller(client JobFetcher, c cache.Cache, policy PollPolicy, cacheTTL time.Duration) *Poller {
	return &Poller{client: client, cache: c, policy: policy, cacheTTL: cacheTTL}
}

// Poll returns a lazy sequence of snapshots for jobID. Observed statuses
// never move backwards; a snapshot that would is dropped. The sequence ends
// after the first terminal snapshot, or with exactly one error: a
// *PollTimeoutError when the bound runs out, ctx.Err() on cancellation, or
// the client error when retrying cannot help.
func (p *Poller) Poll(ctx context.Context, jobID string) iter.Seq2[models.AnalysisJob, error] {
	return func(yield func(models.AnalysisJob, error) bool) {
		if job, ok := p.cached(ctx, jobID); ok {
			yield(job, nil)
			return
		}

		b := p.policy.backOff()
		var (
			last     models.AnalysisJob
			lastErr  error
			attempts int
		)

		for {
			attempts++
			job, err := p.client.GetJob(ctx, jobID)

			switch {
			case err == nil:
				lastErr = nil
				if last.Status != "" && job.Status.Rank() < last.Status.Rank() {
					slog.Warn("dropping regressed job status",
						"job_id", jobID, "seen", last.Status, "got", job.Status)
					break
				}
				last = job
				if job.Status.Terminal() {
					p.remember(ctx, job)
					yield(job, nil)
					return
				}
				if !yield(job, nil) {
					return
				}
			case ctx.Err() != nil:
				yield(models.AnalysisJob{}, ctx.Err())
				return
			case errors.Is(err, intelliparse.ErrTransport):
				lastErr = err
				slog.Warn("job poll failed, retrying", "job_id", jobID, "attempt", attempts, "error", err)
			default:
				yield(models.AnalysisJob{}, err)
				return
			}

			delay := b.NextBackOff()
			if delay == backoff.Stop {
				slog.Info("job poll bound exhausted", "job_id", jobID, "attempts", attempts, "status", last.Status)
				yield(models.AnalysisJob{}, &PollTimeoutError{
					JobID:      jobID,
					Attempts:   attempts,
					LastStatus: last.Status,
					Err:        lastErr,
				})
				return
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				yield(models.AnalysisJob{}, ctx.Err())
				return
			case <-timer.C:
			}
		}
	}
}

// Wait drains Poll and returns the terminal snapshot.
func (p *Poller) Wait(ctx context.Context, jobID string) (models.AnalysisJob, error) {
	var last models.AnalysisJob
	for job, err := range p.Poll(ctx, jobID) {
		if err != nil {
			return models.AnalysisJob{}, err
		}
		last = job
	}
	return last, nil
}

// cachedJob keeps Result as []byte so it round-trips byte for byte;
// json.RawMessage would be re-compacted on encode.
type cachedJob struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
	Result []byte           `json:"result"`
}

func (p *Poller) cached(ctx context.Context, jobID string) (models.AnalysisJob, bool) {
	if p.cache == nil {
		return models.AnalysisJob{}, false
	}
	data, found, err := p.cache.Get(ctx, cache.JobSnapshotKey(jobID))
	if err != nil {
		slog.Warn("job cache read failed", "job_id", jobID, "error", err)
		return models.AnalysisJob{}, false
	}
	if !found {
		return models.AnalysisJob{}, false
	}

	var c cachedJob
	if err := json.Unmarshal(data, &c); err != nil || !c.Status.Terminal() {
		return models.AnalysisJob{}, false
	}
	return models.AnalysisJob{JobID: c.JobID, Status: c.Status, Result: c.Result}, true
}

func (p *Poller) remember(ctx context.Context, job models.AnalysisJob) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(cachedJob{JobID: job.JobID, Status: job.Status, Result: job.Result})
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, cache.JobSnapshotKey(job.JobID), data, p.cacheTTL); err != nil {
		slog.Warn("job cache write failed", "job_id", job.JobID, "error", err)
	}
}
