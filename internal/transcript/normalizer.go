package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// Source tags identifying which call-automation backend produced a payload.
const (
	SourceRetell = "retell"
	SourceVapi   = "vapi"
)

var (
	// ErrUnsupportedSource indicates an unknown source schema tag.
	ErrUnsupportedSource = errors.New("transcript: unsupported source schema")
	// ErrInvalidPayload indicates the payload could not be decoded at all.
	ErrInvalidPayload = errors.New("transcript: invalid payload")
)

// Normalizer adapts heterogeneous call records into the canonical CallRecord.
type Normalizer struct {
	logger *logging.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{logger: logger.Component("transcript")}
}

// Normalize converts a raw payload tagged with its source schema into a CallRecord.
// Only a missing/unknown source tag or an undecodable payload is an error;
// missing optional fields are defaulted.
func (n *Normalizer) Normalize(payload []byte, source string) (*CallRecord, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}

	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceRetell:
		return n.normalizeRetell(payload)
	case SourceVapi:
		return n.normalizeVapi(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

// ---------- retell schema ----------

type retellPayload struct {
	CallID           string  `json:"call_id"`
	FromNumber       string  `json:"from_number"`
	ToNumber         string  `json:"to_number"`
	Direction        string  `json:"direction"`
	StartTimestampMs int64   `json:"start_timestamp"`
	EndTimestampMs   int64   `json:"end_timestamp"`
	CallStatus       string  `json:"call_status"`
	RecordingURL     string  `json:"recording_url"`
	Transcript       string  `json:"transcript"`
	TranscriptObject []struct {
		Role    string  `json:"role"`
		Content string  `json:"content"`
		Words   []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"transcript_object"`
	CallAnalysis *struct {
		UserSentiment string `json:"user_sentiment"`
	} `json:"call_analysis"`
	Confidence float64 `json:"transcription_confidence"`
}

func (n *Normalizer) normalizeRetell(payload []byte) (*CallRecord, error) {
	var p retellPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: retell decode: %v", ErrInvalidPayload, err)
	}

	rec := &CallRecord{
		CallID:       p.CallID,
		Phone:        firstNonEmpty(p.FromNumber, p.ToNumber),
		Direction:    defaultString(p.Direction, "inbound"),
		Status:       defaultString(p.CallStatus, "completed"),
		RecordingURL: p.RecordingURL,
	}
	if p.StartTimestampMs > 0 {
		rec.StartedAt = time.UnixMilli(p.StartTimestampMs).UTC()
	}
	if p.EndTimestampMs > 0 {
		rec.EndedAt = time.UnixMilli(p.EndTimestampMs).UTC()
	}
	if !rec.StartedAt.IsZero() && !rec.EndedAt.IsZero() && rec.EndedAt.After(rec.StartedAt) {
		rec.DurationSecs = int(rec.EndedAt.Sub(rec.StartedAt).Seconds())
	}

	wordCount := 0
	base := rec.StartedAt
	for _, entry := range p.TranscriptObject {
		turn := RawTurn{
			Speaker:    retellSpeaker(entry.Role),
			Text:       entry.Content,
			Confidence: p.Confidence,
		}
		if len(entry.Words) > 0 {
			wordCount += len(entry.Words)
			if !base.IsZero() {
				turn.Timestamp = base.Add(time.Duration(entry.Words[0].Start * float64(time.Second)))
				turn.DurationMs = int((entry.Words[len(entry.Words)-1].End - entry.Words[0].Start) * 1000)
			}
		}
		if turn.Timestamp.IsZero() {
			turn.Timestamp = base
		}
		rec.Turns = append(rec.Turns, turn)
	}

	rec.TranscriptText = p.Transcript
	if rec.TranscriptText == "" {
		rec.TranscriptText = joinTurns(rec.Turns)
	}
	rec.Audio = AudioQuality{AvgConfidence: p.Confidence, WordCount: wordCount}

	n.logger.Debug("normalized retell call", "call_id", rec.CallID, "turns", len(rec.Turns))
	return rec, nil
}

func retellSpeaker(role string) Speaker {
	// Retell labels the AI side "agent" and the caller "user".
	if strings.EqualFold(role, "agent") {
		return SpeakerAgent
	}
	return SpeakerCustomer
}

// ---------- vapi schema ----------

type vapiPayload struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Customer *struct {
		Number string `json:"number"`
	} `json:"customer"`
	PhoneNumber *struct {
		Number string `json:"number"`
	} `json:"phoneNumber"`
	StartedAt    string `json:"startedAt"`
	EndedAt      string `json:"endedAt"`
	RecordingURL string `json:"recordingUrl"`
	Transcript   string `json:"transcript"`
	Messages     []struct {
		Role             string  `json:"role"`
		Message          string  `json:"message"`
		TimeMs           float64 `json:"time"`
		SecondsFromStart float64 `json:"secondsFromStart"`
		Duration         float64 `json:"duration"`
	} `json:"messages"`
}

func (n *Normalizer) normalizeVapi(payload []byte) (*CallRecord, error) {
	var p vapiPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: vapi decode: %v", ErrInvalidPayload, err)
	}

	rec := &CallRecord{
		CallID:       p.ID,
		Direction:    vapiDirection(p.Type),
		Status:       defaultString(p.Status, "completed"),
		RecordingURL: p.RecordingURL,
	}
	if p.Customer != nil {
		rec.Phone = p.Customer.Number
	}
	if rec.Phone == "" && p.PhoneNumber != nil {
		rec.Phone = p.PhoneNumber.Number
	}
	if ts, err := time.Parse(time.RFC3339, p.StartedAt); err == nil {
		rec.StartedAt = ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339, p.EndedAt); err == nil {
		rec.EndedAt = ts.UTC()
	}
	if !rec.StartedAt.IsZero() && !rec.EndedAt.IsZero() && rec.EndedAt.After(rec.StartedAt) {
		rec.DurationSecs = int(rec.EndedAt.Sub(rec.StartedAt).Seconds())
	}

	for _, msg := range p.Messages {
		if strings.EqualFold(msg.Role, "system") {
			continue
		}
		turn := RawTurn{
			Speaker:    vapiSpeaker(msg.Role),
			Text:       msg.Message,
			DurationMs: int(msg.Duration),
		}
		switch {
		case msg.TimeMs > 0:
			turn.Timestamp = time.UnixMilli(int64(msg.TimeMs)).UTC()
		case !rec.StartedAt.IsZero():
			turn.Timestamp = rec.StartedAt.Add(time.Duration(msg.SecondsFromStart * float64(time.Second)))
		}
		rec.Turns = append(rec.Turns, turn)
	}

	rec.TranscriptText = p.Transcript
	if rec.TranscriptText == "" {
		rec.TranscriptText = joinTurns(rec.Turns)
	}

	n.logger.Debug("normalized vapi call", "call_id", rec.CallID, "turns", len(rec.Turns))
	return rec, nil
}

func vapiDirection(callType string) string {
	switch callType {
	case "outboundPhoneCall":
		return "outbound"
	case "inboundPhoneCall", "":
		return "inbound"
	default:
		return "inbound"
	}
}

func vapiSpeaker(role string) Speaker {
	// Vapi labels the AI side "bot" or "assistant".
	switch strings.ToLower(role) {
	case "bot", "assistant", "agent":
		return SpeakerAgent
	default:
		return SpeakerCustomer
	}
}

// ---------- helpers ----------

func joinTurns(turns []RawTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
