package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/intelliparse/console/internal/render"
	"github.com/intelliparse/console/pkg/models"
)

// Phase is the display phase of a modality slot.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// SlotView is the displayed state of one modality slot.
type SlotView struct {
	Modality   models.Modality  `json:"modality"`
	Generation uint64           `json:"generation"`
	JobID      string           `json:"job_id,omitempty"`
	Phase      Phase            `json:"phase"`
	Status     models.JobStatus `json:"status,omitempty"`
	Result     json.RawMessage  `json:"result,omitempty"`
	Rendered   string           `json:"rendered,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Tracker holds the most recent job of each modality slot and keeps its
// display state current.
//
// Every submission bumps the slot's generation and cancels the poll of the
// job it replaces. Updates carry the generation they were started under and
// are dropped unless it is still the slot's latest, so a late answer for a
// superseded job can never overwrite the newer one.
type Tracker struct {
	submitter *Submitter
	poller    *Poller

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	slots  map[models.Modality]*slot
	closed bool
}

type slot struct {
	view   SlotView
	cancel context.CancelFunc
}

// NewTracker creates a Tracker. Call Close to stop all polling.
func NewTracker(submitter *Submitter, poller *Poller) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		submitter: submitter,
		poller:    poller,
		ctx:       ctx,
		cancel:    cancel,
		slots:     make(map[models.Modality]*slot),
	}
}

// Submit replaces the slot's job with a new submission and starts polling
// it in the background. An empty payload leaves the slot untouched. The
// returned view reflects the slot right after the submission was accepted.
func (t *Tracker) Submit(ctx context.Context, req models.AnalysisRequest) (SlotView, error) {
	if len(req.Payload) == 0 {
		return t.View(req.Modality), nil
	}

	gen, pollCtx, err := t.begin(req.Modality)
	if err != nil {
		return t.View(req.Modality), err
	}

	jobID, err := t.submitter.Submit(ctx, req.Modality, req.Filename, req.Payload, req.Options)
	if err != nil {
		t.apply(req.Modality, gen, func(v *SlotView) {
			v.Phase = PhaseFailed
			v.Error = Describe(err)
		})
		return t.View(req.Modality), err
	}

	if !t.startPolling(req.Modality, gen, jobID) {
		slog.Info("dropping superseded submission", "job_id", jobID, "modality", req.Modality, "generation", gen)
		return t.View(req.Modality), ErrSuperseded
	}
	go t.follow(pollCtx, req.Modality, gen, jobID)

	return t.View(req.Modality), nil
}

// View returns a copy of the slot's displayed state.
func (t *Tracker) View(m models.Modality) SlotView {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[m]
	if !ok {
		return SlotView{Modality: m, Phase: PhaseIdle}
	}
	return s.view
}

// Forget stops polling the slot's job and resets the slot to idle.
func (t *Tracker) Forget(m models.Modality) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[m]; ok {
		s.reset(m)
	}
}

// Reset forgets every slot. It runs whenever the signed-in account goes
// away so the next account never sees the previous one's jobs.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for m, s := range t.slots {
		s.reset(m)
	}
}

// Deliver applies a job snapshot pushed by the server to the slot that is
// still waiting on that job, including one whose poll already gave up. It
// reports false when no slot is, which covers jobs that were superseded,
// forgotten, already settled or never submitted here. A terminal snapshot
// settles the slot and stops its poll.
func (t *Tracker) Deliver(ctx context.Context, job models.AnalysisJob) bool {
	if job.JobID == "" || !t.deliver(job) {
		return false
	}
	if job.Status.Terminal() {
		t.poller.remember(ctx, job)
	}
	return true
}

func (t *Tracker) deliver(job models.AnalysisJob) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.slots {
		if s.view.JobID != job.JobID || s.view.Phase == PhaseDone {
			continue
		}
		if job.Status.Rank() < s.view.Status.Rank() {
			return false
		}
		settle(&s.view, job)
		if job.Status.Terminal() && s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return true
	}
	return false
}

// Close cancels every outstanding poll and waits for them to return.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

// begin opens a new generation for the slot and cancels the previous one.
func (t *Tracker) begin(m models.Modality) (uint64, context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, nil, ErrTrackerClosed
	}

	s, ok := t.slots[m]
	if !ok {
		s = &slot{}
		t.slots[m] = s
	}
	if s.cancel != nil {
		s.cancel()
	}

	pollCtx, cancel := context.WithCancel(t.ctx)
	s.cancel = cancel
	s.view = SlotView{
		Modality:   m,
		Generation: s.view.Generation + 1,
		Phase:      PhaseSubmitting,
	}
	return s.view.Generation, pollCtx, nil
}

// startPolling records the accepted job if gen is still current and
// registers the poll goroutine with the wait group.
func (t *Tracker) startPolling(m models.Modality, gen uint64, jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[m]
	if t.closed || !ok || s.view.Generation != gen {
		return false
	}
	s.view.JobID = jobID
	s.view.Phase = PhasePolling
	s.view.Status = models.JobStatusPending
	t.wg.Add(1)
	return true
}

// apply runs fn against the slot view only if gen is still current.
func (t *Tracker) apply(m models.Modality, gen uint64, fn func(*SlotView)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[m]
	if !ok || s.view.Generation != gen {
		return false
	}
	fn(&s.view)
	return true
}

func (t *Tracker) follow(ctx context.Context, m models.Modality, gen uint64, jobID string) {
	defer t.wg.Done()

	for job, err := range t.poller.Poll(ctx, jobID) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.apply(m, gen, func(v *SlotView) {
				v.Phase = PhaseFailed
				v.Error = Describe(err)
			})
			return
		}

		applied := t.apply(m, gen, func(v *SlotView) { settle(v, job) })
		if !applied {
			slog.Debug("discarding stale job snapshot", "job_id", jobID, "generation", gen)
			return
		}
	}
}

// settle copies a job snapshot into the view, finishing it when terminal.
func settle(v *SlotView, job models.AnalysisJob) {
	if v.Phase == PhaseDone {
		return
	}
	v.Status = job.Status
	if !job.Status.Terminal() {
		return
	}
	v.Phase = PhaseDone
	v.Result = job.Result
	v.Rendered = render.Render(job.Result)
	v.Error = ""
	if job.Status == models.JobStatusFailed {
		v.Error = "Analysis failed on the server."
	}
}

// reset must be called with the tracker's mu held.
func (s *slot) reset(m models.Modality) {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.view = SlotView{Modality: m, Generation: s.view.Generation + 1, Phase: PhaseIdle}
}
