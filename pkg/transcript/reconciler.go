// Package transcript reconciles the voice agent's side-channel event stream
// into an ordered, de-duplicated conversation transcript enriched with
// per-stage latency data.
//
// Events arrive as loosely-schematized JSON and may be out of order,
// duplicated or partial: the human utterance, the agent's reply, the refined
// spoken text and the pipeline timings for one exchange are all delivered
// independently. The Reconciler owns the turn collection and the metrics
// side-table, applies per-event-kind duplicate rules, and merges timing data
// into turns whichever side arrives first.
//
// Correlation is best-effort by design. Events without a conversation id are
// bound to the most recently inserted metrics record, and late metrics fall
// back to the most recent turns within a recency window. That is lenient on
// purpose for the single-conversation-at-a-time usage pattern and can
// misattribute timings when conversations overlap.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/davronbek/voiceboard/internal/log"
	"github.com/google/uuid"
)

// Reconciliation windows, in milliseconds.
const (
	// humanDedupWindowMS bounds re-delivered human speech suppression.
	humanDedupWindowMS = 2000

	// agentMergeWindowMS bounds the identical-reply latency merge.
	agentMergeWindowMS = 2000

	// refineWindowMS bounds speech-refinement target lookup.
	refineWindowMS = 5000

	// metricsRetroWindowMS bounds retroactive metrics-to-turn binding.
	metricsRetroWindowMS = 10000

	// recentScan is how many recent turns of a speaker the dedup and
	// retro-binding searches walk.
	recentScan = 3
)

// Reconciler ingests raw side-channel payloads via Handle and incrementally
// builds the conversation transcript. It is safe for one delivering
// goroutine plus any number of snapshot readers; every handler runs to
// completion under one lock, so no event ever observes a half-updated turn.
type Reconciler struct {
	mu      sync.Mutex
	turns   []*Turn
	metrics *metricsTable

	// pendingResponseMS is a response-duration estimate derived from remote
	// audio-track publish timing, applied to the next agent turn that
	// carries no explicit measurement.
	pendingResponseMS float64

	now      func() int64
	onChange func()
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		metrics: newMetricsTable(),
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// OnChange sets a callback fired after any mutation of the turn collection
// or the metrics table. The callback runs outside the reconciler's lock.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Handle processes one raw side-channel payload. It never fails the stream:
// malformed or unmatched events are logged and dropped, and the worst-case
// outcome is that one event's information is lost.
func (r *Reconciler) Handle(raw []byte) {
	ev, err := Classify(raw)
	if err != nil {
		log.Warn("dropping undecodable event", "error", err)
		return
	}

	r.mu.Lock()
	var changed bool
	switch ev.Kind {
	case KindHumanSpeech:
		changed = r.applyHumanSpeech(ev)
	case KindAgentReply:
		changed = r.applyAgentReply(ev)
	case KindAgentSpeech:
		changed = r.applyAgentSpeech(ev)
	case KindPipelineMetrics:
		changed = r.applyMetrics(ev)
	default:
		log.Debug("ignoring unrecognized event")
	}
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// applyHumanSpeech appends a human turn unless the same text was already
// recorded within the dedup window (a re-delivered event).
func (r *Reconciler) applyHumanSpeech(ev Event) bool {
	text := trimmed(ev.Text)
	if text == "" {
		return false
	}
	ts := r.eventTime(ev)
	norm := normalizeText(text)

	if t := r.findRecentDuplicate(SpeakerHuman, norm, ts, humanDedupWindowMS); t != nil {
		log.Debug("dropping duplicate human turn", "text", text)
		return false
	}

	turn := &Turn{
		ID:        uuid.NewString(),
		Speaker:   SpeakerHuman,
		Text:      text,
		CreatedAt: ts,
		Latency:   ev.Stages,
	}
	// Best-effort correlation: bind to the most recently inserted metrics
	// record, if one is pending.
	if rec, ok := r.metrics.latest(); ok {
		turn.CorrelationID = rec.CorrelationID
		turn.Latency.Merge(humanStages(rec.Stages))
	}
	r.turns = append(r.turns, turn)
	return true
}

// applyAgentReply appends or merges an agent turn. An identical reply under
// the same correlation id within the merge window updates latency only;
// different text under the same correlation id is a new response and always
// becomes a new turn. Placeholder texts are kept here and suppressed by the
// presentation filter.
func (r *Reconciler) applyAgentReply(ev Event) bool {
	text := trimmed(ev.Text)
	if text == "" {
		return false
	}
	ts := r.eventTime(ev)
	norm := normalizeText(text)

	corrID := ev.CorrelationID
	if rec, ok := r.metrics.latest(); ok {
		corrID = rec.CorrelationID
	}

	if corrID != "" {
		for i := len(r.turns) - 1; i >= 0; i-- {
			t := r.turns[i]
			if t.Speaker != SpeakerAgent || t.CorrelationID != corrID {
				continue
			}
			if normalizeText(t.Text) == norm && absInt64(ts-t.CreatedAt) < agentMergeWindowMS {
				t.Latency.Merge(ev.Stages)
				if rec, ok := r.metrics.get(corrID); ok {
					t.Latency.Merge(agentStages(rec.Stages))
				}
				return true
			}
			// Same conversation, different text: a new response, never an
			// overwrite. Keep scanning for an identical match, else append.
		}
	}

	turn := &Turn{
		ID:            uuid.NewString(),
		Speaker:       SpeakerAgent,
		Text:          text,
		CreatedAt:     ts,
		CorrelationID: corrID,
		Latency:       ev.Stages,
	}
	if corrID != "" {
		if rec, ok := r.metrics.get(corrID); ok {
			turn.Latency.Merge(agentStages(rec.Stages))
		}
	}
	if r.pendingResponseMS > 0 && turn.Latency.AgentResponseDuration == 0 {
		turn.Latency.AgentResponseDuration = r.pendingResponseMS
		r.pendingResponseMS = 0
	}
	r.turns = append(r.turns, turn)
	return true
}

// applyAgentSpeech replaces an agent turn's text with the finalized spoken
// text. The target is located by correlation id within the freshness window,
// falling back to the most recent agent turn in the same window. With no
// target the event is dropped; the reply event arrives independently, so no
// placeholder turn is created.
func (r *Reconciler) applyAgentSpeech(ev Event) bool {
	text := trimmed(ev.Text)
	if text == "" {
		return false
	}
	ts := r.eventTime(ev)

	corrID := ev.CorrelationID
	if corrID == "" {
		if rec, ok := r.metrics.latest(); ok {
			corrID = rec.CorrelationID
		}
	}

	var target *Turn
	if corrID != "" {
		for i := len(r.turns) - 1; i >= 0; i-- {
			t := r.turns[i]
			if t.Speaker == SpeakerAgent && t.CorrelationID == corrID && absInt64(ts-t.CreatedAt) < refineWindowMS {
				target = t
				break
			}
		}
	}
	if target == nil {
		for i := len(r.turns) - 1; i >= 0; i-- {
			t := r.turns[i]
			if t.Speaker != SpeakerAgent {
				continue
			}
			if absInt64(ts-t.CreatedAt) < refineWindowMS {
				target = t
			}
			break
		}
	}
	if target == nil {
		log.Debug("no turn for speech refinement, dropping", "text", text)
		return false
	}

	target.Text = text
	target.Latency.Merge(ev.Stages)
	return true
}

// applyMetrics normalizes a pipeline_metrics event into the side table and
// merges its stages into matching turns. With no correlation match it
// retroactively binds to the most recent turns within the retro window; the
// record is retained either way so a late-arriving turn can still pick it up.
func (r *Reconciler) applyMetrics(ev Event) bool {
	corrID := ev.CorrelationID
	if corrID == "" {
		if ev.LegacyMetrics {
			log.Warn("dropping legacy metrics event without conversation id")
			return false
		}
		corrID = uuid.NewString()
	}
	observed := r.eventTime(ev)

	rec := MetricsRecord{CorrelationID: corrID, Stages: ev.Stages, ObservedAt: observed}
	r.metrics.put(rec)

	matched := false
	for _, t := range r.turns {
		if t.CorrelationID == corrID {
			r.mergeStages(t, rec.Stages)
			matched = true
		}
	}
	if !matched {
		// Retroactive binding is best-effort: under rapid overlapping turns
		// this can attribute timings to the wrong exchange.
		if t := r.lastTurnWithin(SpeakerAgent, observed, metricsRetroWindowMS); t != nil {
			t.CorrelationID = corrID
			r.mergeStages(t, rec.Stages)
		}
		if t := r.lastTurnWithin(SpeakerHuman, observed, metricsRetroWindowMS); t != nil && t.CorrelationID == "" {
			t.CorrelationID = corrID
			r.mergeStages(t, rec.Stages)
		}
	}
	return true
}

// ObserveAgentAudio records the arrival of the agent's audio track. When no
// pipeline metrics arrived for the exchange, the publish timing gives a
// rough response-duration estimate measured from the last human turn. The
// estimate never overwrites an explicit measurement.
func (r *Reconciler) ObserveAgentAudio(at time.Time) {
	ts := at.UnixMilli()

	r.mu.Lock()
	human := r.lastTurnOf(SpeakerHuman)
	if human == nil || ts <= human.CreatedAt {
		r.mu.Unlock()
		return
	}
	est := float64(ts - human.CreatedAt)

	changed := false
	if agent := r.lastTurnOf(SpeakerAgent); agent != nil && agent.CreatedAt >= human.CreatedAt && agent.Latency.AgentResponseDuration == 0 {
		agent.Latency.AgentResponseDuration = est
		changed = true
	} else {
		r.pendingResponseMS = est
	}
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// Visible returns the filtered, ordered transcript the user sees.
func (r *Reconciler) Visible() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return visibleTurns(r.turns)
}

// Turns returns a copy of the raw turn collection, including entries the
// presentation filter would hide.
func (r *Reconciler) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Turn, 0, len(r.turns))
	for _, t := range r.turns {
		out = append(out, *t)
	}
	return out
}

// Metrics returns the pipeline metrics side-table in insertion order.
func (r *Reconciler) Metrics() []MetricsRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics.snapshot()
}

func (r *Reconciler) notify() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Reconciler) eventTime(ev Event) int64 {
	if ev.Timestamp > 0 {
		return ev.Timestamp
	}
	return r.now()
}

// findRecentDuplicate scans the speaker's last recentScan turns, most recent
// first, for equal normalized text within the window.
func (r *Reconciler) findRecentDuplicate(sp Speaker, norm string, ts, windowMS int64) *Turn {
	seen := 0
	for i := len(r.turns) - 1; i >= 0 && seen < recentScan; i-- {
		t := r.turns[i]
		if t.Speaker != sp {
			continue
		}
		seen++
		if normalizeText(t.Text) == norm && absInt64(ts-t.CreatedAt) < windowMS {
			return t
		}
	}
	return nil
}

// lastTurnWithin returns the most recent of the speaker's last recentScan
// turns whose timestamp is inside the window.
func (r *Reconciler) lastTurnWithin(sp Speaker, ts, windowMS int64) *Turn {
	seen := 0
	for i := len(r.turns) - 1; i >= 0 && seen < recentScan; i-- {
		t := r.turns[i]
		if t.Speaker != sp {
			continue
		}
		seen++
		if absInt64(ts-t.CreatedAt) < windowMS {
			return t
		}
	}
	return nil
}

func (r *Reconciler) lastTurnOf(sp Speaker) *Turn {
	for i := len(r.turns) - 1; i >= 0; i-- {
		if r.turns[i].Speaker == sp {
			return r.turns[i]
		}
	}
	return nil
}

func (r *Reconciler) mergeStages(t *Turn, stages Latency) {
	if t.Speaker == SpeakerHuman {
		t.Latency.Merge(humanStages(stages))
	} else {
		t.Latency.Merge(agentStages(stages))
	}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
