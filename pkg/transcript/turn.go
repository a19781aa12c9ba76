package transcript

import "strings"

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerHuman Speaker = "human"
	SpeakerAgent Speaker = "agent"
)

// Latency holds per-stage pipeline durations for one turn, in milliseconds.
// A zero field means "not measured". Fields merge independently: a positive
// value replaces the old one, zero or absent values never erase a previously
// recorded measurement.
type Latency struct {
	// VoiceActivity is the voice-activity-detection duration.
	VoiceActivity float64 `json:"vad_ms,omitempty"`

	// SpeechToText is the transcription duration.
	SpeechToText float64 `json:"stt_ms,omitempty"`

	// LanguageModel is the language-model inference duration.
	LanguageModel float64 `json:"llm_ms,omitempty"`

	// TextToSpeech is the speech-synthesis duration.
	TextToSpeech float64 `json:"tts_ms,omitempty"`

	// Total is the end-to-end pipeline duration.
	Total float64 `json:"total_ms,omitempty"`

	// HumanSpeechDuration is how long the human spoke.
	HumanSpeechDuration float64 `json:"human_speech_ms,omitempty"`

	// AgentResponseDuration is how long the agent took to respond.
	AgentResponseDuration float64 `json:"agent_response_ms,omitempty"`
}

// Merge applies src onto l field by field. Positive values win; zero or
// negative values in src leave the existing measurement untouched.
func (l *Latency) Merge(src Latency) {
	mergeField(&l.VoiceActivity, src.VoiceActivity)
	mergeField(&l.SpeechToText, src.SpeechToText)
	mergeField(&l.LanguageModel, src.LanguageModel)
	mergeField(&l.TextToSpeech, src.TextToSpeech)
	mergeField(&l.Total, src.Total)
	mergeField(&l.HumanSpeechDuration, src.HumanSpeechDuration)
	mergeField(&l.AgentResponseDuration, src.AgentResponseDuration)
}

func mergeField(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// humanStages returns the subset of stages that belong on a human turn.
func humanStages(l Latency) Latency {
	return Latency{
		VoiceActivity:       l.VoiceActivity,
		SpeechToText:        l.SpeechToText,
		HumanSpeechDuration: l.HumanSpeechDuration,
	}
}

// agentStages returns the subset of stages that belong on an agent turn.
func agentStages(l Latency) Latency {
	return Latency{
		LanguageModel:         l.LanguageModel,
		TextToSpeech:          l.TextToSpeech,
		Total:                 l.Total,
		AgentResponseDuration: l.AgentResponseDuration,
	}
}

// Turn is one conversational utterance, by the human participant or the
// remote agent. Turns are created once and then only mutated: latency fields
// merge as timing data arrives, and agent turns may have their text replaced
// by a speech-refinement event.
type Turn struct {
	ID            string  `json:"id"`
	Speaker       Speaker `json:"speaker"`
	Text          string  `json:"text"`
	CreatedAt     int64   `json:"created_at"` // epoch milliseconds
	CorrelationID string  `json:"correlation_id,omitempty"`
	Latency       Latency `json:"latency"`
}

// normalizeText is the canonical form used for duplicate detection.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
