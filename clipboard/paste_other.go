//go:build !linux

package clipboard

import (
	"errors"
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Paste sends the platform paste chord: Cmd+V on macOS, Ctrl+V elsewhere.
func Paste() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	if kbErr != nil {
		return kbErr
	}
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// Type is only available on Linux via uinput.
func Type(text string) error {
	return errors.New("typing not supported on this platform")
}
