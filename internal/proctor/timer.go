package proctor

import "fmt"

// tick advances the countdown by one. It reports whether the deadline was
// reached on this tick. The countdown never goes below zero and an ended
// session does not tick.
func (s *Session) tick() bool {
	if !s.active() {
		return false
	}
	s.TicksLeft--
	if s.TicksLeft <= 0 {
		s.TicksLeft = 0
		return true
	}
	return false
}

// FormatClock renders a tick count as m:ss.
func FormatClock(ticks int) string {
	if ticks < 0 {
		ticks = 0
	}
	return fmt.Sprintf("%d:%02d", ticks/60, ticks%60)
}
