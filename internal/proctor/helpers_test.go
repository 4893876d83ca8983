package proctor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/proctor-backend/internal/model"
)

// manualScheduler fires callbacks only when Advance moves its clock.
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	seq       int
	at        time.Duration
	every     time.Duration
	fn        func()
	cancelled bool
}

func (s *manualScheduler) add(at, every time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTask{seq: s.seq, at: s.now + at, every: every, fn: fn}
	s.tasks = append(s.tasks, t)
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

func (s *manualScheduler) Every(d time.Duration, fn func()) Cancel { return s.add(d, d, fn) }
func (s *manualScheduler) After(d time.Duration, fn func()) Cancel { return s.add(d, 0, fn) }

// Advance moves the clock forward by d, firing due callbacks in time order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		due := s.nextDue(target)
		if due == nil {
			break
		}
		s.now = due.at
		if due.every > 0 {
			due.at += due.every
		} else {
			due.cancelled = true
		}
		s.mu.Unlock()
		due.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// Live returns the number of callbacks still scheduled.
func (s *manualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (s *manualScheduler) nextDue(target time.Duration) *manualTask {
	var due []*manualTask
	for _, t := range s.tasks {
		if !t.cancelled && t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due[0]
}

// recordingSink keeps every effect for later assertions.
type recordingSink struct {
	mu        sync.Mutex
	states    []Snapshot
	questions []model.QuestionForParticipant
	grades    []Grade
	notices   []Notice
	dismissed []int
	failures  []string
	redirects []Redirect
}

func (r *recordingSink) State(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingSink) Question(q model.QuestionForParticipant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, q)
}

func (r *recordingSink) Graded(g Grade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grades = append(r.grades, g)
}

func (r *recordingSink) Notice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingSink) NoticeDismissed(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissed = append(r.dismissed, id)
}

func (r *recordingSink) Failed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, msg)
}

func (r *recordingSink) Redirect(rd Redirect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, rd)
}

func (r *recordingSink) Redirects() []Redirect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Redirect(nil), r.redirects...)
}

// recordingRecorder keeps audit facts.
type recordingRecorder struct {
	mu         sync.Mutex
	violations []model.QuizViolation
	outcomes   []model.QuizOutcome
}

func (r *recordingRecorder) RecordViolation(_ context.Context, v model.QuizViolation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
}

func (r *recordingRecorder) RecordOutcome(_ context.Context, o model.QuizOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}
