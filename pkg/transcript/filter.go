package transcript

import (
	"sort"
	"strings"
)

// Presentation-filter tuning. Windows are milliseconds.
const (
	// nearDupWindowMS bounds near-duplicate suppression across the
	// already-accepted tail.
	nearDupWindowMS = 3000

	// nearDupScan is how many accepted turns the duplicate check walks back.
	nearDupScan = 10

	// tieBreakWindowMS is the near-simultaneity window inside which a human
	// turn always sorts before an agent turn.
	tieBreakWindowMS = 1000
)

// placeholderTexts are transient "processing" markers emitted while the
// agent prepares a reply. They exist in the raw collection but must never
// reach the rendered transcript.
var placeholderTexts = map[string]struct{}{
	"⏳":                      {},
	"...":                    {},
	"…":                      {},
	"agent is responding":    {},
	"agent is responding...": {},
	"agent is responding…":   {},
}

func isPlaceholder(text string) bool {
	_, ok := placeholderTexts[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// visibleTurns derives the user-visible transcript from the raw collection:
// stable chronological order with the human-before-agent tie-break, then
// placeholder and near-duplicate suppression. It is a pure function and is
// recomputed in full on every collection change.
func visibleTurns(turns []*Turn) []Turn {
	sorted := make([]*Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Speaker != b.Speaker && absInt64(a.CreatedAt-b.CreatedAt) < tieBreakWindowMS {
			return a.Speaker == SpeakerHuman
		}
		return a.CreatedAt < b.CreatedAt
	})

	out := make([]Turn, 0, len(sorted))
	// Last accepted normalized agent text per correlation id. A repeat of
	// the immediately preceding accepted text for the same conversation is
	// dropped; distinct text under the same id is always kept.
	lastAgentText := make(map[string]string)

	for _, t := range sorted {
		text := strings.TrimSpace(t.Text)
		if text == "" || isPlaceholder(text) {
			continue
		}
		norm := normalizeText(text)
		if isNearDuplicate(out, t, norm) {
			continue
		}
		if t.Speaker == SpeakerAgent && t.CorrelationID != "" {
			if lastAgentText[t.CorrelationID] == norm {
				continue
			}
			lastAgentText[t.CorrelationID] = norm
		}
		out = append(out, *t)
	}
	return out
}

// isNearDuplicate reports whether t repeats one of the last nearDupScan
// accepted turns: same speaker, equal normalized text, timestamps within
// the window.
func isNearDuplicate(accepted []Turn, t *Turn, norm string) bool {
	start := len(accepted) - nearDupScan
	if start < 0 {
		start = 0
	}
	for i := len(accepted) - 1; i >= start; i-- {
		prev := accepted[i]
		if prev.Speaker == t.Speaker && normalizeText(prev.Text) == norm && absInt64(t.CreatedAt-prev.CreatedAt) < nearDupWindowMS {
			return true
		}
	}
	return false
}
