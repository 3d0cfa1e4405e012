// Package notify posts desktop notifications for session milestones.
// Failures are logged and swallowed: a missing notification daemon must
// never break a dictation.
package notify

import (
	"strings"

	"github.com/gen2brain/beeep"

	"murmur/log"
)

const previewLen = 120

// Notifier posts desktop notifications when enabled.
type Notifier struct {
	Enabled bool
}

func New(enabled bool) *Notifier {
	return &Notifier{Enabled: enabled}
}

func (n *Notifier) Info(title, body string) {
	if n == nil || !n.Enabled {
		return
	}
	if err := beeep.Notify(title, body, ""); err != nil {
		log.Warnf("notification failed: %v", err)
	}
}

func (n *Notifier) Error(title, body string) {
	if n == nil || !n.Enabled {
		return
	}
	if err := beeep.Alert(title, body, ""); err != nil {
		log.Warnf("notification failed: %v", err)
	}
}

// Preview shortens result text to a notification-sized excerpt. The cut
// falls on a rune boundary so multi-byte text is never mangled.
func Preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + "..."
}
