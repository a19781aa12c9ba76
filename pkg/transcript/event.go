package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the semantic kind of an inbound side-channel event.
type Kind int

const (
	// KindUnrecognized marks events this client does not understand.
	KindUnrecognized Kind = iota
	// KindHumanSpeech is a finalized human utterance.
	KindHumanSpeech
	// KindAgentReply is the agent's generated reply text.
	KindAgentReply
	// KindAgentSpeech is the refined text as actually spoken by TTS.
	KindAgentSpeech
	// KindPipelineMetrics carries per-stage pipeline timings.
	KindPipelineMetrics
)

// String returns a human-readable event kind.
func (k Kind) String() string {
	switch k {
	case KindHumanSpeech:
		return "human-speech"
	case KindAgentReply:
		return "agent-reply"
	case KindAgentSpeech:
		return "agent-speech-refinement"
	case KindPipelineMetrics:
		return "pipeline-metrics"
	default:
		return "unrecognized"
	}
}

// Event is the decoded, classified form of one side-channel payload. Only
// the fields relevant to the resolved kind are meaningful.
type Event struct {
	Kind Kind

	// Text is the utterance text for speech/reply events.
	Text string

	// Timestamp is the payload's epoch-millisecond timestamp, 0 when the
	// payload omitted it.
	Timestamp int64

	// CorrelationID is the conversation id carried by the payload, if any.
	CorrelationID string

	// Stages are the stage durations carried inline on the event.
	Stages Latency

	// LegacyMetrics marks the flat pipeline_metrics shape, which requires
	// an explicit conversation id.
	LegacyMetrics bool
}

// stageDuration decodes a stage timing that may arrive as a bare number of
// milliseconds or as an object {"duration_ms": n}.
type stageDuration struct {
	MS float64
}

func (s *stageDuration) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		s.MS = n
		return nil
	}
	var obj struct {
		DurationMS float64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.MS = obj.DurationMS
	return nil
}

// wireLatency is the inline latency block on speech/reply events.
type wireLatency struct {
	VAD                   float64 `json:"vad"`
	STT                   float64 `json:"stt"`
	LLM                   float64 `json:"llm"`
	TTS                   float64 `json:"tts"`
	Total                 float64 `json:"total"`
	UserSpeechDuration    float64 `json:"userSpeechDuration"`
	AgentResponseDuration float64 `json:"agentResponseDuration"`
}

// wireItem is the structured conversation_item_added payload.
type wireItem struct {
	Role    string            `json:"role"`
	Content []json.RawMessage `json:"content"`
}

// wireMetrics is the nested pipeline_metrics shape.
type wireMetrics struct {
	VAD             stageDuration `json:"vad"`
	STT             stageDuration `json:"stt"`
	LLM             stageDuration `json:"llm"`
	TTS             stageDuration `json:"tts"`
	Total           stageDuration `json:"total"`
	TotalDurationMS float64       `json:"total_duration_ms"`
}

// rawEvent accepts every wire shape the side-channel is known to produce,
// including the legacy flat forms.
type rawEvent struct {
	Type              string            `json:"type"`
	Text              string            `json:"text"`
	Timestamp         int64             `json:"timestamp"`
	CreatedAt         int64             `json:"created_at"`
	ConversationID    string            `json:"conversation_id"`
	ConversationIDAlt string            `json:"conversationId"`
	Latency           *wireLatency      `json:"latency"`
	Item              *wireItem         `json:"item"`
	Role              string            `json:"role"`
	Content           []json.RawMessage `json:"content"`
	Metrics           *wireMetrics      `json:"metrics"`

	// Legacy flat metrics fields.
	VAD             *stageDuration `json:"vad"`
	STT             *stageDuration `json:"stt"`
	LLM             *stageDuration `json:"llm"`
	TTS             *stageDuration `json:"tts"`
	TotalDurationMS float64        `json:"total_duration_ms"`
}

func (re *rawEvent) timestamp() int64 {
	if re.Timestamp > 0 {
		return re.Timestamp
	}
	return re.CreatedAt
}

func (re *rawEvent) correlationID() string {
	if re.ConversationID != "" {
		return re.ConversationID
	}
	return re.ConversationIDAlt
}

// roleAndContent resolves the assistant item fields, which may arrive nested
// under "item" or flat at the top level.
func (re *rawEvent) roleAndContent() (string, []json.RawMessage) {
	if re.Item != nil {
		return re.Item.Role, re.Item.Content
	}
	return re.Role, re.Content
}

// firstString returns the first element of content that is a JSON string.
func firstString(content []json.RawMessage) string {
	for _, c := range content {
		var s string
		if err := json.Unmarshal(c, &s); err == nil {
			return s
		}
	}
	return ""
}

// Classify decodes one raw side-channel payload and resolves its semantic
// kind. It is a pure routing function with no side effects. Malformed JSON
// yields an error; well-formed payloads with unknown or unhandled shapes
// resolve to KindUnrecognized.
func Classify(raw []byte) (Event, error) {
	var re rawEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return Event{}, fmt.Errorf("transcript: decode event: %w", err)
	}

	ev := Event{
		Timestamp:     re.timestamp(),
		CorrelationID: re.correlationID(),
	}

	switch re.Type {
	case "user_speech":
		ev.Kind = KindHumanSpeech
		ev.Text = re.Text
		if re.Latency != nil {
			ev.Stages.VoiceActivity = re.Latency.VAD
			ev.Stages.SpeechToText = re.Latency.STT
			ev.Stages.HumanSpeechDuration = re.Latency.UserSpeechDuration
		}

	case "agent_reply":
		ev.Kind = KindAgentReply
		ev.Text = re.Text
		if re.Latency != nil {
			ev.Stages = agentWireStages(re.Latency)
		}

	case "conversation_item_added":
		// Structured alias for agent_reply. Only assistant items are
		// conversational; any other role is dropped silently.
		role, content := re.roleAndContent()
		if !strings.EqualFold(role, "assistant") {
			ev.Kind = KindUnrecognized
			return ev, nil
		}
		ev.Kind = KindAgentReply
		ev.Text = firstString(content)

	case "agent_speech":
		ev.Kind = KindAgentSpeech
		ev.Text = re.Text
		if re.Latency != nil {
			ev.Stages = agentWireStages(re.Latency)
			ev.Stages.VoiceActivity = re.Latency.VAD
			ev.Stages.SpeechToText = re.Latency.STT
			ev.Stages.HumanSpeechDuration = re.Latency.UserSpeechDuration
		}

	case "pipeline_metrics", "metrics_collected":
		ev.Kind = KindPipelineMetrics
		if re.Metrics != nil {
			ev.Stages = Latency{
				VoiceActivity: re.Metrics.VAD.MS,
				SpeechToText:  re.Metrics.STT.MS,
				LanguageModel: re.Metrics.LLM.MS,
				TextToSpeech:  re.Metrics.TTS.MS,
				Total:         re.Metrics.Total.MS,
			}
			if ev.Stages.Total == 0 {
				ev.Stages.Total = re.Metrics.TotalDurationMS
			}
		} else {
			ev.LegacyMetrics = true
			ev.Stages = Latency{
				VoiceActivity: stageMS(re.VAD),
				SpeechToText:  stageMS(re.STT),
				LanguageModel: stageMS(re.LLM),
				TextToSpeech:  stageMS(re.TTS),
				Total:         re.TotalDurationMS,
			}
		}

	default:
		ev.Kind = KindUnrecognized
	}

	return ev, nil
}

func agentWireStages(w *wireLatency) Latency {
	return Latency{
		LanguageModel:         w.LLM,
		TextToSpeech:          w.TTS,
		Total:                 w.Total,
		AgentResponseDuration: w.AgentResponseDuration,
	}
}

func stageMS(s *stageDuration) float64 {
	if s == nil {
		return 0
	}
	return s.MS
}
