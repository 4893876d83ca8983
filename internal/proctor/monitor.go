package proctor

import "strings"

// SignalKind names an environment event relayed by the participant's browser.
type SignalKind string

const (
	SignalVisibility SignalKind = "visibility"
	SignalCopy       SignalKind = "copy"
	SignalPaste      SignalKind = "paste"
	SignalKeyDown    SignalKind = "keydown"
)

// Signal is one raw environment event.
type Signal struct {
	Kind   SignalKind
	Hidden bool   // visibility: the host surface is now hidden
	Key    string // keydown: the pressed key
	Ctrl   bool
	Meta   bool
}

// ViolationKind classifies a detected violation.
type ViolationKind string

const (
	ViolationNone          ViolationKind = ""
	ViolationTabHidden     ViolationKind = "TAB_HIDDEN"
	ViolationCopy          ViolationKind = "COPY"
	ViolationPaste         ViolationKind = "PASTE"
	ViolationShortcutCopy  ViolationKind = "SHORTCUT_COPY"
	ViolationShortcutPaste ViolationKind = "SHORTCUT_PASTE"
)

// Verdict is the monitor's answer to a signal.
type Verdict struct {
	Violation ViolationKind `json:"violation,omitempty"`
	// Suppress tells the host to cancel the default action of the event.
	Suppress bool `json:"suppress"`
}

// IsViolation reports whether the signal produced a warning event.
func (v Verdict) IsViolation() bool {
	return v.Violation != ViolationNone
}

// integrityMonitor turns raw signals into violations. It keeps no counters.
// While detached it ignores everything.
type integrityMonitor struct {
	attached bool
}

func (m *integrityMonitor) attach() { m.attached = true }
func (m *integrityMonitor) detach() { m.attached = false }

func (m *integrityMonitor) observe(sig Signal) Verdict {
	if !m.attached {
		return Verdict{}
	}

	switch sig.Kind {
	case SignalVisibility:
		if sig.Hidden {
			return Verdict{Violation: ViolationTabHidden}
		}
	case SignalCopy:
		return Verdict{Violation: ViolationCopy, Suppress: true}
	case SignalPaste:
		return Verdict{Violation: ViolationPaste, Suppress: true}
	case SignalKeyDown:
		if !sig.Ctrl && !sig.Meta {
			return Verdict{}
		}
		switch strings.ToLower(sig.Key) {
		case "c":
			return Verdict{Violation: ViolationShortcutCopy, Suppress: true}
		case "v":
			return Verdict{Violation: ViolationShortcutPaste, Suppress: true}
		}
	}
	return Verdict{}
}
