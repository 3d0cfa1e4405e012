// Package merge combines per-source transcript streams into one
// time-ordered, speaker-labeled document.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"murmur/capture"
	"murmur/transcriber"
)

// Speaker labels by capture role.
const (
	SpeakerMe    = "Me"
	SpeakerOther = "Other"
)

func speakerFor(role capture.Role) string {
	if role == capture.RoleSecondary {
		return SpeakerOther
	}
	return SpeakerMe
}

// Line is one merged transcript entry.
type Line struct {
	Start   float64
	Speaker string
	Text    string
}

// rolePriority fixes the tie-break order: primary sorts before secondary at
// identical start offsets so output is deterministic.
func rolePriority(role capture.Role) int {
	if role == capture.RolePrimary {
		return 0
	}
	return 1
}

// Merge interleaves segment sequences from any number of roles by start
// offset. The result is independent of the order roles appear in the map.
func Merge(byRole map[capture.Role][]transcriber.Segment) []Line {
	type tagged struct {
		seg     transcriber.Segment
		prio    int
		speaker string
	}

	// Collect in fixed role order so map iteration order cannot leak into
	// the output; the stable sort then preserves within-role order.
	var all []tagged
	for _, role := range []capture.Role{capture.RolePrimary, capture.RoleSecondary} {
		for _, s := range byRole[role] {
			all = append(all, tagged{seg: s, prio: rolePriority(role), speaker: speakerFor(role)})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].seg.Start != all[j].seg.Start {
			return all[i].seg.Start < all[j].seg.Start
		}
		return all[i].prio < all[j].prio
	})

	lines := make([]Line, 0, len(all))
	for _, t := range all {
		lines = append(lines, Line{Start: t.seg.Start, Speaker: t.speaker, Text: t.seg.Text})
	}
	return lines
}

// Render formats merged lines one per row:
//
//	[HH:MM:SS] [Me] text
func Render(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "[%s] [%s] %s\n", FormatOffset(l.Start), l.Speaker, l.Text)
	}
	return b.String()
}

// FormatOffset renders an elapsed offset as HH:MM:SS.
func FormatOffset(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
