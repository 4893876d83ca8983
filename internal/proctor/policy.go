package proctor

import "time"

// Policy holds the timing and budget rules of a proctored session.
type Policy struct {
	// DurationTicks is the countdown length in ticks.
	DurationTicks int
	// TickInterval is the wall-clock length of one tick.
	TickInterval time.Duration
	// WarningBudget is the number of warnings that ends the session.
	WarningBudget int
	// NoticeDuration is how long a warning notice stays on screen.
	NoticeDuration time.Duration
	// GradingPause is how long a graded answer is shown before advancing.
	GradingPause time.Duration
}

// DefaultPolicy returns the production rules: 60 one-second ticks, a budget
// of three warnings, three-second notices and a 1.5s grading pause.
func DefaultPolicy() Policy {
	return Policy{
		DurationTicks:  60,
		TickInterval:   time.Second,
		WarningBudget:  3,
		NoticeDuration: 3 * time.Second,
		GradingPause:   1500 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.DurationTicks <= 0 {
		p.DurationTicks = d.DurationTicks
	}
	if p.TickInterval <= 0 {
		p.TickInterval = d.TickInterval
	}
	if p.WarningBudget <= 0 {
		p.WarningBudget = d.WarningBudget
	}
	if p.NoticeDuration <= 0 {
		p.NoticeDuration = d.NoticeDuration
	}
	if p.GradingPause <= 0 {
		p.GradingPause = d.GradingPause
	}
	return p
}
