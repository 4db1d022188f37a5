package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// Score component weights. Negative keywords subtract, everything else adds;
// the total is clamped to [0,1].
const (
	weightKeywords   = 0.4
	weightAltPhrases = 0.2
	weightNegative   = 0.3
	weightConditions = 0.3
	weightContext    = 0.1
)

// ---------- condition fallback phrases ----------

// conditionPhrases back up entity extraction: when the summarizer did not
// resolve a condition, its presence can still be inferred from phrasing.
var conditionPhrases = map[Condition][]string{
	CondName:        {"my name is", "this is ", "i'm ", "i am "},
	CondLocation:    {" at ", "address", "located", "our office", "our house", "my place", "my home"},
	CondContact:     {"call me", "reach me", "phone", "email", "text me", "@"},
	CondServiceType: {"clean", "repair", "fix", "install", "service", "plumb", "electric", "paint"},
	CondTimeline:    {"today", "tomorrow", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "next week", "this week", "morning", "afternoon", "evening"},
	CondUrgency:     {"urgent", "emergency", "asap", "right away", "immediately", "as soon as"},
}

// visitPhrases signal an on-site visit for location_visit alignment.
var visitPhrases = []string{
	"send someone", "come out", "come by", "come over", "stop by", "visit",
	"on site", "on-site", "come to", "come clean",
}

var quotePhrases = []string{"how much", "price", "quote", "estimate", "cost"}

// Evaluator scores conversations against an account's trigger rules.
type Evaluator struct {
	logger *logging.Logger
	now    analysis.Clock
}

// NewEvaluator creates an evaluator. Nil arguments get safe defaults.
func NewEvaluator(logger *logging.Logger, now analysis.Clock) *Evaluator {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{logger: logger.Component("trigger"), now: now}
}

// Evaluate scores every active rule independently and returns the activations
// of those that fire. Zero activations is a normal outcome, not an error.
func (e *Evaluator) Evaluate(summary *analysis.ConversationSummary, rules []Rule) []Activation {
	if summary == nil || len(rules) == 0 {
		return nil
	}

	text := customerText(summary)
	var activations []Activation
	for i := range rules {
		rule := &rules[i]
		if !rule.Active {
			continue
		}

		score := e.scoreRule(rule, summary, text)
		if score.total < rule.EffectiveThreshold() {
			continue
		}

		activations = append(activations, Activation{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			AccountID:      summary.AccountID,
			ConversationID: summary.ConversationID,
			Confidence:     score.total,
			Reason:         score.reason(),
			ConditionsMet:  score.allConditionsMet,
			Timestamp:      e.now().UTC(),
		})
		e.logger.Info("trigger fired",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"conversation_id", summary.ConversationID,
			"confidence", score.total,
		)
	}
	return activations
}

// Score exposes the raw confidence for one rule without the firing decision.
// Used by the rule-test admin endpoint.
func (e *Evaluator) Score(summary *analysis.ConversationSummary, rule *Rule) float64 {
	if summary == nil || rule == nil {
		return 0
	}
	return e.scoreRule(rule, summary, customerText(summary)).total
}

type ruleScore struct {
	keywordCoverage  float64
	altCoverage      float64
	negativeCoverage float64
	conditionRatio   float64
	contextAligned   bool
	allConditionsMet bool
	total            float64
}

func (s ruleScore) reason() string {
	parts := []string{}
	if s.keywordCoverage > 0 {
		parts = append(parts, fmt.Sprintf("keywords %.0f%%", s.keywordCoverage*100))
	}
	if s.altCoverage > 0 {
		parts = append(parts, fmt.Sprintf("alternative phrases %.0f%%", s.altCoverage*100))
	}
	if s.negativeCoverage > 0 {
		parts = append(parts, fmt.Sprintf("negative keywords %.0f%%", s.negativeCoverage*100))
	}
	if s.conditionRatio > 0 {
		parts = append(parts, fmt.Sprintf("conditions %.0f%%", s.conditionRatio*100))
	}
	if s.contextAligned {
		parts = append(parts, "context aligned")
	}
	if len(parts) == 0 {
		return "no components matched"
	}
	return "matched: " + strings.Join(parts, ", ")
}

func (e *Evaluator) scoreRule(rule *Rule, summary *analysis.ConversationSummary, text string) ruleScore {
	var s ruleScore

	s.keywordCoverage = phraseCoverage(text, rule.Keywords)
	s.altCoverage = phraseCoverage(text, rule.AlternativePhrases)
	s.negativeCoverage = phraseCoverage(text, rule.NegativeKeywords)
	s.conditionRatio, s.allConditionsMet = conditionSatisfaction(rule.RequiredConditions, summary, text)
	s.contextAligned = contextAlignment(rule.Type, summary, text)

	total := s.keywordCoverage*weightKeywords +
		s.altCoverage*weightAltPhrases -
		s.negativeCoverage*weightNegative +
		s.conditionRatio*weightConditions
	if s.contextAligned {
		total += weightContext
	}

	if total < 0 {
		total = 0
	}
	if total > 1 {
		total = 1
	}
	s.total = total
	return s
}

// customerText concatenates and lower-cases the customer turns. Rules never
// match against agent speech.
func customerText(summary *analysis.ConversationSummary) string {
	var b strings.Builder
	for _, t := range summary.Turns {
		if t.Speaker != transcript.SpeakerCustomer {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return strings.ToLower(b.String())
}

// phraseCoverage is the fraction of phrases present in the text.
// An empty phrase list contributes nothing.
func phraseCoverage(text string, phrases []string) float64 {
	if len(phrases) == 0 {
		return 0
	}
	hits := 0
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(text, p) {
			hits++
		}
	}
	return float64(hits) / float64(len(phrases))
}

// conditionSatisfaction checks each required condition against extracted
// business data first, then falls back to a phrase search over the raw text.
func conditionSatisfaction(required []Condition, summary *analysis.ConversationSummary, text string) (float64, bool) {
	if len(required) == 0 {
		return 0, true
	}
	met := 0
	for _, cond := range required {
		if conditionMet(cond, summary, text) {
			met++
		}
	}
	return float64(met) / float64(len(required)), met == len(required)
}

func conditionMet(cond Condition, summary *analysis.ConversationSummary, text string) bool {
	var extracted string
	switch cond {
	case CondName:
		extracted = summary.Business.Name
	case CondLocation:
		extracted = summary.Business.Location
	case CondContact:
		extracted = summary.Business.Contact
	case CondServiceType:
		extracted = summary.Business.ServiceType
	case CondTimeline:
		extracted = summary.Business.Timeline
	case CondUrgency:
		extracted = summary.Business.Urgency
	}
	if extracted != "" {
		return true
	}
	for _, phrase := range conditionPhrases[cond] {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// contextAlignment runs the rule-type specific pattern check.
func contextAlignment(ruleType RuleType, summary *analysis.ConversationSummary, text string) bool {
	switch ruleType {
	case RuleLocationVisit:
		// A visit request only aligns when we also resolved where to go.
		return containsAny(text, visitPhrases) &&
			(summary.Business.Location != "" || conditionMet(CondLocation, summary, text))
	case RuleServiceRequest:
		return summary.PrimaryIntent == "service_request" || summary.Business.ServiceType != ""
	case RuleUrgentDispatch:
		return summary.Business.Urgency != "" || containsAny(text, conditionPhrases[CondUrgency])
	case RuleQuoteRequest:
		return containsAny(text, quotePhrases)
	default:
		return false
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
