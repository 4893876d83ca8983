package proctor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorObserve(t *testing.T) {
	tests := []struct {
		name string
		sig  Signal
		want Verdict
	}{
		{"tab hidden", Signal{Kind: SignalVisibility, Hidden: true}, Verdict{Violation: ViolationTabHidden}},
		{"tab visible again", Signal{Kind: SignalVisibility, Hidden: false}, Verdict{}},
		{"copy", Signal{Kind: SignalCopy}, Verdict{Violation: ViolationCopy, Suppress: true}},
		{"paste", Signal{Kind: SignalPaste}, Verdict{Violation: ViolationPaste, Suppress: true}},
		{"ctrl+c", Signal{Kind: SignalKeyDown, Key: "c", Ctrl: true}, Verdict{Violation: ViolationShortcutCopy, Suppress: true}},
		{"cmd+v", Signal{Kind: SignalKeyDown, Key: "v", Meta: true}, Verdict{Violation: ViolationShortcutPaste, Suppress: true}},
		{"ctrl+shift+V", Signal{Kind: SignalKeyDown, Key: "V", Ctrl: true}, Verdict{Violation: ViolationShortcutPaste, Suppress: true}},
		{"plain c", Signal{Kind: SignalKeyDown, Key: "c"}, Verdict{}},
		{"ctrl+a", Signal{Kind: SignalKeyDown, Key: "a", Ctrl: true}, Verdict{}},
		{"unknown kind", Signal{Kind: "scroll"}, Verdict{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m integrityMonitor
			m.attach()
			assert.Equal(t, tt.want, m.observe(tt.sig))
		})
	}
}

func TestMonitorDetachedIgnoresEverything(t *testing.T) {
	var m integrityMonitor
	assert.Equal(t, Verdict{}, m.observe(Signal{Kind: SignalCopy}))

	m.attach()
	m.detach()
	assert.Equal(t, Verdict{}, m.observe(Signal{Kind: SignalPaste}))
	assert.Equal(t, Verdict{}, m.observe(Signal{Kind: SignalVisibility, Hidden: true}))
}
