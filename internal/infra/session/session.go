package session

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// Snapshot is a point-in-time copy of a session, safe to serialise.
type Snapshot struct {
	ID         string                `json:"id"`
	State      review.State          `json:"state"`
	Progress   string                `json:"progress,omitempty"`
	Analyzing  bool                  `json:"analyzing"`
	Primary    *review.FileHandle    `json:"primary,omitempty"`
	Supporting []review.FileHandle   `json:"supporting"`
	HasReport  bool                  `json:"has_report"`
	Error      *review.AnalysisError `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Session is one reviewer's workspace: uploads, run state and the last report.
type Session struct {
	ID string

	mu        sync.Mutex
	uploads   review.UploadSet
	state     review.State
	progress  string
	result    *review.Result
	createdAt time.Time
	updatedAt time.Time
	changed   chan struct{}
	now       func() time.Time
}

func newSession(id string, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:        id,
		state:     review.StateIdle,
		createdAt: t,
		updatedAt: t,
		changed:   make(chan struct{}),
		now:       now,
	}
}

// notifyLocked wakes every subscriber. Caller holds mu.
func (s *Session) notifyLocked() {
	s.updatedAt = s.now()
	close(s.changed)
	s.changed = make(chan struct{})
}

// SetPrimary replaces the Form APR. Rejected while a run is in flight.
func (s *Session) SetPrimary(f *review.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Working() {
		return review.ErrAnalysisInProgress
	}
	if err := s.uploads.SetPrimary(f); err != nil {
		return err
	}
	s.notifyLocked()
	return nil
}

func (s *Session) AddSupporting(files ...review.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Working() {
		return review.ErrAnalysisInProgress
	}
	s.uploads.AddSupporting(files...)
	s.notifyLocked()
	return nil
}

func (s *Session) RemoveSupporting(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Working() {
		return review.ErrAnalysisInProgress
	}
	s.uploads.RemoveSupporting(index)
	s.notifyLocked()
	return nil
}

// BeginRun implements review.RunTarget.
func (s *Session) BeginRun() (review.UploadSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Working() {
		return review.UploadSet{}, review.ErrAnalysisInProgress
	}
	if s.uploads.Primary == nil {
		return review.UploadSet{}, review.ErrPrimaryMissing
	}
	s.state = review.StateExtractingPrimary
	s.progress = ""
	s.result = nil
	s.notifyLocked()
	return s.uploads.Clone(), nil
}

func (s *Session) SetProgress(state review.State, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.progress = label
	s.notifyLocked()
}

// Finish stores the report and ends the run.
func (s *Session) Finish(res review.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &res
	s.progress = ""
	if res.Failed() {
		s.state = review.StateFailed
	} else {
		s.state = review.StateDone
	}
	s.notifyLocked()
}

// Report returns the last report, if any run has finished.
func (s *Session) Report() (review.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return review.Result{}, false
	}
	return *s.result, true
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	u := s.uploads.Clone()
	snap := Snapshot{
		ID:         s.ID,
		State:      s.state,
		Progress:   s.progress,
		Analyzing:  s.state.Working(),
		Primary:    u.Primary,
		Supporting: u.Supporting,
		HasReport:  s.result != nil,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.result != nil {
		snap.Error = s.result.Err
	}
	return snap
}

// Subscribe emits the current snapshot, then one snapshot per change until
// ctx is done. Bursts of changes may be coalesced into the latest one.
func (s *Session) Subscribe(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		for {
			s.mu.Lock()
			snap := s.snapshotLocked()
			ch := s.changed
			s.mu.Unlock()

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			select {
			case <-ch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
