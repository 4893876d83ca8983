package proctor

import "fmt"

// Notice is the transient on-screen warning shown after a violation.
type Notice struct {
	ID      int           `json:"id"`
	Kind    ViolationKind `json:"kind"`
	Count   int           `json:"count"`
	Budget  int           `json:"budget"`
	Message string        `json:"message"`
	// Transient is false for the notice that exhausts the budget; it is
	// never dismissed because the session ends with it.
	Transient bool `json:"transient"`
}

// recordWarning consumes one unit of the warning budget. It reports the new
// count and whether the budget is now exhausted. The count never decreases
// and an ended session records nothing.
func (s *Session) recordWarning(budget int) (int, bool) {
	if !s.active() {
		return s.WarningCount, false
	}
	s.WarningCount++
	return s.WarningCount, s.WarningCount >= budget
}

func noticeMessage(count, budget int) string {
	return fmt.Sprintf("Restricted action detected (%d/%d warnings)", count, budget)
}
