package transcript

import "time"

// Speaker identifies which side of the call produced a turn.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// RawTurn is one utterance as delivered by a call-automation backend,
// before any analysis has run.
type RawTurn struct {
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int       `json:"duration_ms,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// AudioQuality carries coarse signal metrics when the source provides them.
type AudioQuality struct {
	AvgConfidence float64 `json:"avg_confidence"`
	WordCount     int     `json:"word_count"`
}

// CallRecord is the canonical shape every source schema is normalized into.
// Missing optional fields are defaulted, never rejected.
type CallRecord struct {
	ConversationID string       `json:"conversation_id"`
	CallID         string       `json:"call_id"`
	Phone          string       `json:"phone"`
	Direction      string       `json:"direction"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        time.Time    `json:"ended_at"`
	DurationSecs   int          `json:"duration_secs"`
	Status         string       `json:"status"`
	RecordingURL   string       `json:"recording_url,omitempty"`
	Turns          []RawTurn    `json:"turns"`
	TranscriptText string       `json:"transcript_text"`
	Audio          AudioQuality `json:"audio"`
}

// CustomerTurns returns only the customer-side turns, preserving order.
func (r *CallRecord) CustomerTurns() []RawTurn {
	var out []RawTurn
	for _, t := range r.Turns {
		if t.Speaker == SpeakerCustomer {
			out = append(out, t)
		}
	}
	return out
}
