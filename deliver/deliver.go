// Package deliver moves finished results to their destination: dictated
// text into the focused application, meeting artifacts onto disk.
package deliver

import (
	"fmt"

	"murmur/clipboard"
	"murmur/log"
)

// Text delivers result text. The clipboard copy is the contract; pasting
// and typing are best-effort conveniences on top of it.
type Text struct {
	AutoPaste bool
}

// Deliver copies text to the clipboard and, when auto-paste is on, sends a
// paste keystroke into the focused window. If the paste keystroke cannot be
// synthesized the text is typed key by key instead. Only the clipboard copy
// can fail the delivery.
func (t *Text) Deliver(text string) error {
	if text == "" {
		return nil
	}
	if err := clipboard.Copy(text); err != nil {
		return fmt.Errorf("clipboard copy: %w", err)
	}
	if !t.AutoPaste {
		return nil
	}
	if err := clipboard.Paste(); err != nil {
		log.Warnf("paste keystroke failed, typing instead: %v", err)
		if err := clipboard.Type(text); err != nil {
			log.Warnf("typing failed, text remains in clipboard: %v", err)
		}
	}
	return nil
}
