package analysis

import (
	"context"
	"math"
	"regexp"
	"strings"
)

// TextAnalyzer is the narrow text-analysis capability: turn text in,
// sentiment/intent/entities out. The keyword implementation below is the
// default; a model-backed implementation can be swapped in without touching
// the pipeline, scoring, or state-machine code.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

const entityConfidence = 0.8

// ---------- package-level compiled regexes ----------

var (
	phoneRE   = regexp.MustCompile(`\+?\d[\d().\s-]{7,}\d`)
	emailRE   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	addressRE = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z][A-Za-z']*(?:\s+[A-Za-z][A-Za-z']*)?\s+(?:st|street|ave|avenue|rd|road|blvd|boulevard|dr|drive|ln|lane|way|ct|court|pl|place)\b`)
	nameRE    = regexp.MustCompile(`(?i)(?:my name is|this is|i'?m)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	weekdayRE = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	relDayRE  = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|this week|next week|this weekend|next month)\b`)
	clockRE   = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)\b`)
)

// ---------- sentiment keyword sets ----------

// Each match shifts the score by a small fixed delta; the total is clipped
// to [-1,1].
const sentimentDelta = 0.2

var positiveKeywords = []string{
	"great", "perfect", "thank", "thanks", "awesome", "wonderful", "good",
	"appreciate", "excellent", "happy", "love", "nice", "helpful", "yes please",
	"sounds good", "that works",
}

var negativeKeywords = []string{
	"terrible", "awful", "angry", "horrible", "worst", "bad", "unhappy",
	"frustrated", "disappointed", "annoyed", "useless", "ridiculous", "hate",
	"never again", "waste of time",
}

// ---------- intent table ----------

// intentPatterns is an ordered first-match-wins table. More specific intents
// come before generic ones.
var intentPatterns = []struct {
	intent   string
	keywords []string
}{
	{"complaint", []string{"complaint", "complain", "unacceptable", "speak to a manager", "manager", "refund my"}},
	{"cancellation", []string{"cancel", "call it off", "not coming", "don't come"}},
	{"service_request", []string{"send someone", "come out", "come clean", "fix", "repair", "broken", "not working", "leaking", "leak", "install", "clean our", "clean my", "need service", "stopped working"}},
	{"booking", []string{"book", "appointment", "schedule", "reserve", "set up a time", "come by"}},
	{"pricing", []string{"how much", "price", "cost", "quote", "estimate", "charge"}},
	{"question", []string{"what", "when", "how", "do you", "can you", "is there", "are you"}},
}

const defaultIntent = "neutral"

// ---------- service keyword table ----------

// serviceTypes maps spoken phrases to canonical service names.
// Ordered by specificity.
var serviceTypes = []struct {
	pattern string
	name    string
}{
	{"air conditioning", "AC Repair"},
	{"air conditioner", "AC Repair"},
	{"ac repair", "AC Repair"},
	{"ac unit", "AC Repair"},
	{"cooling", "AC Repair"},
	{"hvac", "AC Repair"},
	{"plumber", "Plumbing"},
	{"plumbing", "Plumbing"},
	{"pipe", "Plumbing"},
	{"drain", "Plumbing"},
	{"faucet", "Plumbing"},
	{"toilet", "Plumbing"},
	{"water heater", "Plumbing"},
	{"electrician", "Electrical"},
	{"electrical", "Electrical"},
	{"wiring", "Electrical"},
	{"breaker", "Electrical"},
	{"outlet", "Electrical"},
	{"power outage", "Electrical"},
	{"deep clean", "Cleaning"},
	{"cleaning", "Cleaning"},
	{"clean", "Cleaning"},
	{"maid", "Cleaning"},
	{"janitorial", "Cleaning"},
	{"paint", "Painting"},
	{"painting", "Painting"},
	{"repaint", "Painting"},
	{"carpenter", "Carpentry"},
	{"carpentry", "Carpentry"},
	{"cabinet", "Carpentry"},
	{"woodwork", "Carpentry"},
	{"landscaping", "Landscaping"},
	{"lawn", "Landscaping"},
	{"garden", "Landscaping"},
	{"mowing", "Landscaping"},
	{"tree trimming", "Landscaping"},
}

// ---------- urgency phrases ----------

var urgencyPhrases = []string{
	"emergency", "urgent", "asap", "as soon as possible", "right away",
	"immediately", "right now", "can't wait", "today if possible",
}

// KeywordAnalyzer is the heuristic TextAnalyzer. It is pure and deterministic:
// identical input always yields identical output.
type KeywordAnalyzer struct{}

// NewKeywordAnalyzer creates the heuristic analyzer.
func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

// Analyze runs the three independent passes over one turn's text.
func (a *KeywordAnalyzer) Analyze(_ context.Context, text string) (Analysis, error) {
	lower := strings.ToLower(text)
	return Analysis{
		Sentiment: ScoreSentiment(lower),
		Intent:    ClassifyIntent(lower),
		Entities:  ExtractEntities(text),
	}, nil
}

// ScoreSentiment sums fixed deltas for keyword matches and clips to [-1,1].
// Input must already be lower-cased.
func ScoreSentiment(lower string) float64 {
	score := 0.0
	for _, kw := range positiveKeywords {
		score += sentimentDelta * float64(strings.Count(lower, kw))
	}
	for _, kw := range negativeKeywords {
		score -= sentimentDelta * float64(strings.Count(lower, kw))
	}
	return clamp(score, -1, 1)
}

// ClassifyIntent returns the first matching intent tag, or "neutral".
// Input must already be lower-cased.
func ClassifyIntent(lower string) string {
	for _, row := range intentPatterns {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.intent
			}
		}
	}
	return defaultIntent
}

// ExtractEntities runs the pattern extractors over original-case text.
func ExtractEntities(text string) []Entity {
	lower := strings.ToLower(text)
	var entities []Entity

	appendMatches := func(re *regexp.Regexp, kind EntityKind) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Kind:       kind,
				Value:      strings.TrimSpace(text[loc[0]:loc[1]]),
				Confidence: entityConfidence,
				SpanStart:  loc[0],
				SpanEnd:    loc[1],
			})
		}
	}

	appendMatches(emailRE, EntityEmail)
	appendMatches(addressRE, EntityLocation)

	// Phone numbers: skip matches already claimed as part of an address span.
	for _, loc := range phoneRE.FindAllStringIndex(text, -1) {
		if overlapsKind(entities, EntityLocation, loc[0], loc[1]) {
			continue
		}
		entities = append(entities, Entity{
			Kind:       EntityPhone,
			Value:      strings.TrimSpace(text[loc[0]:loc[1]]),
			Confidence: entityConfidence,
			SpanStart:  loc[0],
			SpanEnd:    loc[1],
		})
	}

	if m := nameRE.FindStringSubmatchIndex(text); m != nil {
		entities = append(entities, Entity{
			Kind:       EntityPerson,
			Value:      text[m[2]:m[3]],
			Confidence: entityConfidence,
			SpanStart:  m[2],
			SpanEnd:    m[3],
		})
	}

	for _, svc := range serviceTypes {
		if idx := strings.Index(lower, svc.pattern); idx >= 0 {
			entities = append(entities, Entity{
				Kind:       EntityService,
				Value:      svc.name,
				Confidence: entityConfidence,
				SpanStart:  idx,
				SpanEnd:    idx + len(svc.pattern),
			})
			break
		}
	}

	for _, phrase := range urgencyPhrases {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			entities = append(entities, Entity{
				Kind:       EntityUrgency,
				Value:      phrase,
				Confidence: entityConfidence,
				SpanStart:  idx,
				SpanEnd:    idx + len(phrase),
			})
			break
		}
	}

	appendMatches(weekdayRE, EntityDateTime)
	appendMatches(relDayRE, EntityDateTime)
	appendMatches(clockRE, EntityDateTime)

	return entities
}

func overlapsKind(entities []Entity, kind EntityKind, start, end int) bool {
	for _, e := range entities {
		if e.Kind == kind && start < e.SpanEnd && end > e.SpanStart {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
