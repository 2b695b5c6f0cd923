package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// Adapter produces candidate threat reports for the standing query. The
// reasoning internals are opaque to the pipeline.
type Adapter interface {
	FindThreats(ctx context.Context) ([]models.RawCandidate, error)
}

const (
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 2 * time.Minute

	standingQuery = "Find recent geopolitical threats to the maritime industry."

	systemPrompt = `You are an expert maritime geopolitical analyst. Identify and summarize current
geopolitical threats to the maritime industry and tariff fluctuations, using
only credible reporting from the last two weeks.

For each threat produce an object with these fields:
- title: a concise title for the threat
- region: the primary region affected (e.g. "Red Sea", "South China Sea", "Global")
- countries: list of impacted countries
- category: a broad category (e.g. "Piracy", "Military Conflict", "Sanctions", "Cyber Attack")
- description: a 2-3 sentence summary
- potential_impact: the potential impact on the maritime industry
- source_urls: list of supporting source URLs
- date_mentioned: the date the threat was mentioned in the sources, or "Not specified"

Respond with a JSON object with a single key "reports" containing the list of
threat objects. If you find no new, credible threats, respond with
{"reports": []}.`
)

var errNoChoices = errors.New("completion returned no choices")

// Agent is the LLM-backed discovery adapter.
type Agent struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

// NewAgent builds an agent for the given API key and model. An empty model
// selects the default.
func NewAgent(apiKey, model string, log *slog.Logger) (*Agent, error) {
	if apiKey == "" {
		return nil, errors.New("discovery API key not set")
	}
	if model == "" {
		model = defaultModel
	}
	return &Agent{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    log,
	}, nil
}

// FindThreats issues the standing query and extracts candidate reports from
// the response. Unparseable output yields zero candidates, not an error; only
// a failed completion call is reported as an adapter failure.
func (a *Agent) FindThreats(ctx context.Context) ([]models.RawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(standingQuery),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return nil, fmt.Errorf("discovery completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errNoChoices
	}

	raw := completion.Choices[0].Message.Content
	candidates := ParseReports(raw)
	if len(candidates) == 0 {
		a.log.Info("discovery returned no parseable reports")
	}
	return candidates, nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseReports extracts the reports list from raw agent output. The payload
// may be wrapped in a fenced code block or be bare JSON; anything else is
// treated as zero reports.
func ParseReports(raw string) []models.RawCandidate {
	payload := raw
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		payload = m[1]
	}

	var out struct {
		Reports []models.RawCandidate `json:"reports"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil
	}
	return out.Reports
}
