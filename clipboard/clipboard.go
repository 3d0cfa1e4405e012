// Package clipboard delivers finished text to the focused application:
// copy to the system clipboard, synthesize a paste keystroke, or type the
// text key by key when pasting is not possible.
package clipboard

import cb "github.com/atotto/clipboard"

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}
