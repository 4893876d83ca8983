package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/model"
)

// Redirect tells the host where to navigate once the session is over.
type Redirect struct {
	Target string `json:"target"`
	Reason Reason `json:"reason"`
}

// Sink receives the outbound effects of a session. Calls are made while the
// controller holds its lock and must not block or call back into the controller.
type Sink interface {
	State(Snapshot)
	Question(model.QuestionForParticipant)
	Graded(Grade)
	Notice(Notice)
	NoticeDismissed(id int)
	Failed(message string)
	Redirect(Redirect)
}

// Recorder receives audit facts. Calls are made after the controller releases
// its lock.
type Recorder interface {
	RecordViolation(ctx context.Context, v model.QuizViolation)
	RecordOutcome(ctx context.Context, o model.QuizOutcome)
}

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	// SessionID is used when set; otherwise a fresh ID is generated.
	SessionID uuid.UUID
	Policy    Policy
	Scheduler Scheduler
	Recorder  Recorder
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Controller runs one proctored session. Every input (tick, signal,
// submission, question set, scheduled callback, close) goes through one
// lock, so the session is mutated by a single serialized reducer and the
// first path that ends the session wins.
type Controller struct {
	mu       sync.Mutex
	policy   Policy
	sched    Scheduler
	rec      Recorder
	sink     Sink
	log      zerolog.Logger
	now      func() time.Time
	sess     *Session
	monitor  integrityMonitor
	started  bool
	ticker   Cancel
	timers   map[int]Cancel
	timerSeq int
	noticeID int
	noticeOn int
	deferred []func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController builds a controller for participant on topic. The session is
// created here but nothing runs until Start.
func NewController(ctx context.Context, participant, topic string, sink Sink, opts Options) *Controller {
	policy := opts.Policy.withDefaults()
	sched := opts.Scheduler
	if sched == nil {
		sched = WallScheduler{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	sess := newSession(participant, topic, policy, now())
	if opts.SessionID != uuid.Nil {
		sess.ID = opts.SessionID
	}
	cctx, cancel := context.WithCancel(ctx)

	return &Controller{
		policy: policy,
		sched:  sched,
		rec:    opts.Recorder,
		sink:   sink,
		log: opts.Logger.With().
			Str("session_id", sess.ID.String()).
			Str("participant", participant).
			Logger(),
		now:    now,
		sess:   sess,
		timers: make(map[int]Cancel),
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID { return c.sess.ID }

// Context is cancelled when the session ends. Work tied to the session, such
// as the question-set fetch, should use it.
func (c *Controller) Context() context.Context { return c.ctx }

// Done is closed when the session ends.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Policy returns the effective policy.
func (c *Controller) Policy() Policy { return c.policy }

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.snapshot(c.policy.WarningBudget)
}

// Start mounts the session: the monitor is attached and the countdown begins.
// Progression stays in the loading phase until LoadQuestions or FailFetch.
func (c *Controller) Start() {
	c.do(func() {
		if c.started || !c.sess.active() {
			return
		}
		c.started = true
		c.monitor.attach()
		c.ticker = c.sched.Every(c.policy.TickInterval, c.Tick)
		c.log.Info().
			Str("topic", c.sess.Topic).
			Int("duration_ticks", c.policy.DurationTicks).
			Msg("Proctored session started")
		c.sink.State(c.snapshot())
	})
}

// Tick advances the countdown by one tick.
func (c *Controller) Tick() {
	c.do(func() {
		if c.sess.tick() {
			c.end(ReasonTimeExpired)
			return
		}
		if c.sess.active() {
			c.sink.State(c.snapshot())
		}
	})
}

// HandleSignal feeds one environment event through the integrity monitor and,
// for a violation, through the escalation policy. The returned verdict tells
// the host whether to cancel the event's default action.
func (c *Controller) HandleSignal(sig Signal) Verdict {
	var v Verdict
	c.do(func() {
		v = c.monitor.observe(sig)
		if v.IsViolation() {
			c.recordWarning(v.Violation)
		}
	})
	return v
}

// RecordWarning consumes one unit of the warning budget for a violation
// detected outside HandleSignal.
func (c *Controller) RecordWarning(kind ViolationKind) {
	c.do(func() { c.recordWarning(kind) })
}

// Submit scores an answer for the current question and schedules the advance
// to the next question after the grading pause.
func (c *Controller) Submit(choice string) (Grade, error) {
	var (
		grade Grade
		err   error
	)
	c.do(func() {
		grade, err = c.sess.submit(choice)
		if err != nil {
			return
		}
		c.sink.Graded(grade)
		c.sink.State(c.snapshot())

		idx := grade.Index
		c.schedule(c.policy.GradingPause, func() { c.advance(idx) })
	})
	return grade, err
}

// LoadQuestions delivers the fetched question set. An empty set puts the
// progression machine into the Error phase.
func (c *Controller) LoadQuestions(questions []model.Question) error {
	var err error
	c.do(func() {
		err = c.sess.load(questions)
		switch {
		case err == nil:
			c.log.Debug().Int("questions", len(questions)).Msg("Question set loaded")
			c.sink.Question(c.sess.currentQuestion())
			c.sink.State(c.snapshot())
		case c.sess.Phase == PhaseError:
			c.log.Warn().Err(err).Msg("Question set rejected")
			c.sink.Failed(c.sess.FetchErrorMsg)
			c.sink.State(c.snapshot())
		}
	})
	return err
}

// FailFetch reports that the question set could not be retrieved.
func (c *Controller) FailFetch(err error) {
	c.do(func() {
		if !c.sess.fail(err) {
			return
		}
		c.log.Warn().Err(err).Msg("Question set fetch failed")
		c.sink.Failed(c.sess.FetchErrorMsg)
		c.sink.State(c.snapshot())
	})
}

// Close tears the session down. A session still active ends as aborted with
// no redirect. Close is idempotent.
func (c *Controller) Close() {
	c.do(func() {
		if !c.end(ReasonAborted) {
			c.release()
		}
	})
}

// ─── Internal reducer steps (lock held) ───────────────────────────────

func (c *Controller) recordWarning(kind ViolationKind) {
	if !c.sess.active() {
		return
	}
	count, exhausted := c.sess.recordWarning(c.policy.WarningBudget)

	c.noticeID++
	id := c.noticeID
	c.noticeOn = id
	c.sink.Notice(Notice{
		ID:        id,
		Kind:      kind,
		Count:     count,
		Budget:    c.policy.WarningBudget,
		Message:   noticeMessage(count, c.policy.WarningBudget),
		Transient: !exhausted,
	})

	c.log.Warn().
		Str("violation", string(kind)).
		Int("warnings", count).
		Msg("Integrity violation")

	if c.rec != nil {
		v := model.QuizViolation{
			SessionID:    c.sess.ID,
			Participant:  c.sess.Participant,
			Topic:        c.sess.Topic,
			Kind:         string(kind),
			WarningCount: count,
			RecordedAt:   c.now(),
		}
		c.after(func(ctx context.Context) { c.rec.RecordViolation(ctx, v) })
	}

	if exhausted {
		c.end(ReasonTooManyWarnings)
		return
	}

	c.sink.State(c.snapshot())
	c.schedule(c.policy.NoticeDuration, func() {
		// Only the newest notice is on screen; older dismissals are stale.
		if c.noticeOn == id {
			c.noticeOn = 0
			c.sink.NoticeDismissed(id)
		}
	})
}

func (c *Controller) advance(i int) {
	complete, ok := c.sess.advance(i)
	if !ok {
		return
	}
	if complete {
		c.end(ReasonCompleted)
		return
	}
	c.sink.Question(c.sess.currentQuestion())
	c.sink.State(c.snapshot())
}

// end is the single termination routine: a check-and-set on the session
// status. It reports whether this call performed the transition.
func (c *Controller) end(reason Reason) bool {
	if !c.sess.active() {
		return false
	}
	c.sess.Status = StatusTerminated
	c.sess.Reason = reason
	c.release()

	switch reason {
	case ReasonTimeExpired, ReasonTooManyWarnings:
		c.sink.Redirect(Redirect{Target: HomePath, Reason: reason})
	case ReasonCompleted:
		c.sink.Redirect(Redirect{
			Target: ResultsPath(c.sess.Score, len(c.sess.Questions), c.sess.Topic),
			Reason: reason,
		})
	}
	c.sink.State(c.snapshot())

	c.log.Info().
		Str("reason", string(reason)).
		Int("score", c.sess.Score).
		Int("total", len(c.sess.Questions)).
		Int("warnings", c.sess.WarningCount).
		Msg("Proctored session ended")

	if c.rec != nil {
		o := model.QuizOutcome{
			SessionID:   c.sess.ID,
			Participant: c.sess.Participant,
			Topic:       c.sess.Topic,
			Reason:      string(reason),
			Score:       c.sess.Score,
			Total:       len(c.sess.Questions),
			Warnings:    c.sess.WarningCount,
			StartedAt:   c.sess.StartedAt,
			FinishedAt:  c.now(),
		}
		c.after(func(ctx context.Context) { c.rec.RecordOutcome(ctx, o) })
	}

	close(c.done)
	return true
}

// release detaches the monitor and cancels every pending schedule. It runs
// on every exit path and is idempotent.
func (c *Controller) release() {
	c.monitor.detach()
	if c.ticker != nil {
		c.ticker()
		c.ticker = nil
	}
	for key, cancel := range c.timers {
		cancel()
		delete(c.timers, key)
	}
	c.cancel()
}

// schedule runs fn under the lock after d, unless the session ended or the
// schedule was cancelled in the meantime.
func (c *Controller) schedule(d time.Duration, fn func()) {
	c.timerSeq++
	key := c.timerSeq
	c.timers[key] = c.sched.After(d, func() {
		c.do(func() {
			if _, ok := c.timers[key]; !ok {
				return
			}
			delete(c.timers, key)
			if c.sess.active() {
				fn()
			}
		})
	})
}

func (c *Controller) snapshot() Snapshot {
	return c.sess.snapshot(c.policy.WarningBudget)
}

// after queues fn to run once the lock is released. The context outlives
// the session so audit writes are not lost on termination.
func (c *Controller) after(fn func(ctx context.Context)) {
	ctx := context.WithoutCancel(c.ctx)
	c.deferred = append(c.deferred, func() { fn(ctx) })
}

func (c *Controller) do(fn func()) {
	c.mu.Lock()
	fn()
	pending := c.deferred
	c.deferred = nil
	c.mu.Unlock()

	for _, f := range pending {
		f()
	}
}
