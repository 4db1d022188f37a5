package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
)

// Sentiment buckets: mean turn sentiment beyond ±0.1 is labeled
// positive/negative, anything in between neutral.
const sentimentBucket = 0.1

// Summarizer aggregates analyzed turns into a ConversationSummary.
// It never fails: sparse or empty turn data yields zeros and defaults.
type Summarizer struct {
	now Clock
}

// NewSummarizer creates a summarizer. A nil clock defaults to time.Now.
func NewSummarizer(now Clock) *Summarizer {
	if now == nil {
		now = time.Now
	}
	return &Summarizer{now: now}
}

// Summarize builds the conversation-level summary for one call.
func (s *Summarizer) Summarize(accountID, conversationID string, rec *transcript.CallRecord, turns []Turn) *ConversationSummary {
	summary := &ConversationSummary{
		ConversationID: conversationID,
		AccountID:      accountID,
		PrimaryIntent:  defaultIntent,
		SentimentLabel: "neutral",
		CreatedAt:      s.now().UTC(),
		Turns:          turns,
	}
	if rec != nil {
		summary.CallID = rec.CallID
		summary.Phone = rec.Phone
		summary.Direction = rec.Direction
		summary.StartedAt = rec.StartedAt
		summary.EndedAt = rec.EndedAt
		summary.DurationSecs = rec.DurationSecs
		summary.CallStatus = rec.Status
	}

	summary.TurnCount = len(turns)
	if len(turns) == 0 {
		return summary
	}

	totalWords := 0
	sentimentSum := 0.0
	intentCounts := map[string]int{}
	intentOrder := []string{}

	var prevSpeaker transcript.Speaker
	for i, t := range turns {
		switch t.Speaker {
		case transcript.SpeakerCustomer:
			summary.CustomerTurnCount++
		case transcript.SpeakerAgent:
			summary.AgentTurnCount++
		}
		totalWords += len(strings.Fields(t.Text))
		sentimentSum += t.Sentiment

		if t.Intent != "" && t.Intent != defaultIntent {
			if intentCounts[t.Intent] == 0 {
				intentOrder = append(intentOrder, t.Intent)
			}
			intentCounts[t.Intent]++
		}

		// Adjacent same-speaker turns count as interruptions of the flow.
		if i > 0 && t.Speaker == prevSpeaker {
			summary.Interruptions++
		}
		prevSpeaker = t.Speaker
	}

	summary.AvgTurnWords = float64(totalWords) / float64(len(turns))
	summary.OverallSentiment = sentimentSum / float64(len(turns))
	switch {
	case summary.OverallSentiment > sentimentBucket:
		summary.SentimentLabel = "positive"
	case summary.OverallSentiment < -sentimentBucket:
		summary.SentimentLabel = "negative"
	}

	// Primary intent: most frequent non-neutral, ties broken by first encountered.
	best := ""
	bestCount := 0
	for _, intent := range intentOrder {
		if intentCounts[intent] > bestCount {
			best = intent
			bestCount = intentCounts[intent]
		}
	}
	if best != "" {
		summary.PrimaryIntent = best
	}

	// Flow quality: alternation ratio, bounded by how much conversation there was.
	alternation := 1.0
	if len(turns) > 1 {
		alternation = 1 - float64(summary.Interruptions)/float64(len(turns)-1)
	}
	summary.FlowQuality = alternation * math.Min(1, float64(len(turns))/10)

	summary.Business = collapseBusinessData(turns)
	summary.Quality = scoreQuality(summary)
	return summary
}

// collapseBusinessData takes the first non-empty entity per kind across
// customer turns, in turn order.
func collapseBusinessData(turns []Turn) BusinessData {
	var data BusinessData
	for _, t := range turns {
		if t.Speaker != transcript.SpeakerCustomer {
			continue
		}
		for _, e := range t.Entities {
			switch e.Kind {
			case EntityPerson:
				if data.Name == "" {
					data.Name = e.Value
				}
			case EntityPhone, EntityEmail:
				if data.Contact == "" {
					data.Contact = e.Value
				}
			case EntityLocation:
				if data.Location == "" {
					data.Location = e.Value
				}
			case EntityService:
				if data.ServiceType == "" {
					data.ServiceType = e.Value
				}
			case EntityUrgency:
				if data.Urgency == "" {
					data.Urgency = e.Value
				}
			case EntityDateTime:
				if data.Timeline == "" {
					data.Timeline = e.Value
				}
			}
		}
	}
	return data
}

func scoreQuality(summary *ConversationSummary) QualityMetrics {
	present := 0
	for _, field := range []string{
		summary.Business.Name,
		summary.Business.Contact,
		summary.Business.Location,
		summary.Business.ServiceType,
	} {
		if field != "" {
			present++
		}
	}

	completeness := float64(present) / 4
	engagement := math.Min(1, float64(summary.CustomerTurnCount)/5)
	leadScore := int(math.Round((completeness + engagement) * 50))

	conversion := float64(leadScore) / 100
	switch summary.SentimentLabel {
	case "positive":
		conversion += 0.1
	case "negative":
		conversion -= 0.1
	}

	return QualityMetrics{
		LeadScore:             leadScore,
		Engagement:            engagement,
		Completeness:          completeness,
		ConversionProbability: clamp(conversion, 0, 1),
	}
}
