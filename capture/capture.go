// Package capture manages the recording units owned by a session. The
// primary role records the operator microphone in-process; the secondary
// role records system/monitor audio through an external process.
package capture

import (
	"fmt"
	"strings"

	"murmur/audio"
)

// Role tags a source as operator voice or system audio.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// ArtifactName is the file name a role's artifact takes inside a session
// directory.
func (r Role) ArtifactName() string {
	if r == RoleSecondary {
		return "system.wav"
	}
	return "mic.wav"
}

// Source is one running capture unit. It is owned by exactly one session.
type Source interface {
	Role() Role
	// Stop finalizes the recording and returns the artifact path.
	Stop() (string, error)
	// Abort tears the source down without keeping an artifact.
	Abort()
}

// Opener creates sources for session roles. dir receives the artifact.
type Opener interface {
	Open(role Role, dir string) (Source, error)
}

// DeviceOpener opens real capture sources against the local audio stack.
type DeviceOpener struct {
	Audio         audio.Context
	SampleRate    int
	MicDevice     *audio.DeviceInfo
	MonitorSource string // pulse source name, empty = auto-detect
}

func (o *DeviceOpener) Open(role Role, dir string) (Source, error) {
	switch role {
	case RolePrimary:
		return openMic(o.Audio, o.MicDevice, o.SampleRate, dir)
	case RoleSecondary:
		name := o.MonitorSource
		if name == "" || name == "auto" {
			detected, err := DetectMonitorSource(o.Audio)
			if err != nil {
				return nil, fmt.Errorf("detect monitor source: %w", err)
			}
			name = detected
		}
		return openMonitor(name, o.SampleRate, dir)
	default:
		return nil, fmt.Errorf("unknown capture role %q", role)
	}
}

// DetectMonitorSource finds the first PulseAudio monitor source, the sink
// loopback that carries system audio.
func DetectMonitorSource(ctx audio.Context) (string, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if strings.HasSuffix(d.Name, ".monitor") || strings.Contains(d.Name, "monitor") {
			return d.Name, nil
		}
	}
	return "", fmt.Errorf("no monitor source found among %d sources", len(devices))
}
