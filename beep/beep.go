// Package beep plays short audible cues so the user knows a toggle was
// heard without looking at a screen: capture started, capture stopped,
// result discarded, something failed.
package beep

var disabled bool

// Disable silences all cues. Used when notifications.sound is off.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Discard cue: low single blip for too-short recordings
	discardFreq   = 500
	discardVolume = 0.4
	discardDecay  = 50

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)
