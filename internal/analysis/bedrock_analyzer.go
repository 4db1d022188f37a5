package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

const bedrockSystemPrompt = `You analyze one utterance from a phone call.
Respond with only a JSON object:
{"sentiment": <float -1..1>, "intent": "<complaint|cancellation|service_request|booking|pricing|question|neutral>",
 "entities": [{"kind": "<person|location|phone|email|service|urgency|datetime>", "value": "<string>", "confidence": <float 0..1>}]}`

// BedrockAnalyzer is a model-backed TextAnalyzer using the Bedrock Converse API.
// It fills the text-analysis seam for accounts that opt out of the keyword
// heuristics.
type BedrockAnalyzer struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockAnalyzer builds the analyzer around a Bedrock runtime client.
func NewBedrockAnalyzer(api bedrockConverseAPI, modelID string) *BedrockAnalyzer {
	if api == nil {
		panic("analysis: bedrock client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		panic("analysis: bedrock model id cannot be empty")
	}
	return &BedrockAnalyzer{api: api, modelID: modelID}
}

// Analyze asks the model for sentiment/intent/entities and normalizes its reply.
func (a *BedrockAnalyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return Analysis{Intent: defaultIntent}, nil
	}

	out, err := a.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(a.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: bedrockSystemPrompt},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: text},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(512),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis: bedrock converse: %w", err)
	}

	reply, err := converseText(out)
	if err != nil {
		return Analysis{}, err
	}
	return parseModelAnalysis(reply)
}

func converseText(out *bedrockruntime.ConverseOutput) (string, error) {
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("analysis: bedrock returned no message output")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(textBlock.Value)
		}
	}
	return b.String(), nil
}

type modelAnalysis struct {
	Sentiment float64 `json:"sentiment"`
	Intent    string  `json:"intent"`
	Entities  []struct {
		Kind       string  `json:"kind"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

func parseModelAnalysis(reply string) (Analysis, error) {
	// Models sometimes wrap JSON in prose or code fences; take the outermost braces.
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Analysis{}, fmt.Errorf("analysis: no JSON object in model reply")
	}

	var parsed modelAnalysis
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return Analysis{}, fmt.Errorf("analysis: decode model reply: %w", err)
	}

	result := Analysis{
		Sentiment: clamp(parsed.Sentiment, -1, 1),
		Intent:    parsed.Intent,
	}
	if result.Intent == "" {
		result.Intent = defaultIntent
	}
	for _, e := range parsed.Entities {
		if e.Value == "" {
			continue
		}
		conf := e.Confidence
		if conf <= 0 || conf > 1 {
			conf = entityConfidence
		}
		result.Entities = append(result.Entities, Entity{
			Kind:       EntityKind(e.Kind),
			Value:      e.Value,
			Confidence: conf,
		})
	}
	return result, nil
}
