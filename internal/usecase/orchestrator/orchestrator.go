package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"conductor/internal/domain"
	"conductor/internal/infra/tracer"
)

// Default orchestration limits.
const (
	defaultThreshold     = 0.3
	defaultMaxConcurrent = 4
	maxSuggestedActions  = 5
)

const noSpecialistsReply = "Sorry, I could not get a response from the specialists right now. Please try again."

// Sender is the slice of the dispatcher the router needs: role-addressed
// sends for specialists and a load-balanced send for synthesis.
type Sender interface {
	Send(ctx context.Context, role, message, contextText string) (*domain.Response, error)
	BalanceLoad(ctx context.Context, message, contextText string) (*domain.Response, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Threshold is the normalized-score cutoff for specialist selection.
	// 0 uses the default (0.3).
	Threshold float64
	// MaxConcurrent caps concurrent specialist calls. 0 uses the default (4).
	MaxConcurrent int
	// Specialists overrides the built-in table, for tests.
	Specialists []Specialist
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator scores a request against specialist keyword sets, fans it
// out to the selected specialists through the dispatcher, and synthesizes
// one coordinated answer.
type Orchestrator struct {
	specialists   []Specialist
	dispatcher    Sender
	threshold     float64
	maxConcurrent int
	logger        *slog.Logger
}

// Result is the outcome of one Orchestrate call.
type Result struct {
	PrimaryResponse     string            `json:"primary_response"`
	SpecialistResponses map[string]string `json:"specialist_responses"`
	ActiveSpecialists   []string          `json:"active_specialists"`
	SuggestedActions    []string          `json:"suggested_actions"`
}

// SpecialistInfo describes one specialist for discovery endpoints.
type SpecialistInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// New creates an Orchestrator on top of the given dispatcher.
func New(dispatcher Sender, opts Options) *Orchestrator {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	specialists := opts.Specialists
	if specialists == nil {
		specialists = defaultSpecialists()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		specialists:   specialists,
		dispatcher:    dispatcher,
		threshold:     threshold,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Orchestrate runs the single-pass pipeline: score, select, dispatch,
// synthesize, suggest. It always produces a Result; individual specialist
// failures are logged and omitted, never fatal.
func (o *Orchestrator) Orchestrate(ctx context.Context, message string) (*Result, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.orchestrate")
	defer span.End()

	scores := o.scoreIntent(message)
	selected := o.selectSpecialists(scores)

	keys := make([]string, len(selected))
	for i, sp := range selected {
		keys[i] = sp.Key
	}
	o.logger.Info("specialists selected", "specialists", keys)
	span.SetAttributes(tracer.IntAttr("orchestrator.specialists", len(selected)))

	responses := o.dispatchSpecialists(ctx, selected, message)
	primary := o.synthesize(ctx, message, selected, responses)
	actions := suggestActions(selected)

	tracer.SetOK(span)
	return &Result{
		PrimaryResponse:     primary,
		SpecialistResponses: responses,
		ActiveSpecialists:   keys,
		SuggestedActions:    actions,
	}, nil
}

// Specialists returns discovery info for every specialist, keyed by role.
func (o *Orchestrator) Specialists() map[string]SpecialistInfo {
	out := make(map[string]SpecialistInfo, len(o.specialists))
	for _, sp := range o.specialists {
		out[sp.Key] = SpecialistInfo{
			Name:        sp.Name,
			Description: sp.Description,
			Keywords:    append([]string(nil), sp.Keywords...),
		}
	}
	return out
}

// scoreIntent counts case-insensitive substring keyword matches per
// specialist and normalizes by the global maximum. A zero maximum leaves
// all scores at zero.
func (o *Orchestrator) scoreIntent(message string) []float64 {
	lower := strings.ToLower(message)

	raw := make([]float64, len(o.specialists))
	maxScore := 0.0
	for i, sp := range o.specialists {
		score := 0.0
		for _, kw := range sp.Keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		raw[i] = score
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore > 0 {
		for i := range raw {
			raw[i] /= maxScore
		}
	}
	return raw
}

// selectSpecialists keeps every specialist at or above the threshold.
// An empty cut falls back to the single best scorer, ties broken by
// definition order, so at least one specialist always responds.
func (o *Orchestrator) selectSpecialists(scores []float64) []Specialist {
	var selected []Specialist
	for i, sp := range o.specialists {
		if scores[i] >= o.threshold {
			selected = append(selected, sp)
		}
	}
	if len(selected) > 0 {
		return selected
	}

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return []Specialist{o.specialists[best]}
}

// dispatchSpecialists fans the rendered prompts out concurrently. Failed
// specialists are absent from the result map.
func (o *Orchestrator) dispatchSpecialists(ctx context.Context, selected []Specialist, message string) map[string]string {
	responses := make(map[string]string, len(selected))

	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
		sem = make(chan struct{}, o.maxConcurrent)
	)
	for _, sp := range selected {
		wg.Add(1)
		go func(sp Specialist) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			prompt := strings.ReplaceAll(sp.PromptTemplate, "{message}", message)
			resp, err := o.dispatcher.Send(ctx, sp.Key, prompt, "")
			if err != nil {
				o.logger.Warn("specialist call failed", "specialist", sp.Key, "error", err)
				return
			}
			rmu.Lock()
			responses[sp.Key] = resp.Content
			rmu.Unlock()
		}(sp)
	}
	wg.Wait()

	return responses
}

// synthesize coordinates the specialist responses into one answer. It tries
// a meta-prompt against any available adapter and falls back to headed
// concatenation when that call fails.
func (o *Orchestrator) synthesize(ctx context.Context, message string, selected []Specialist, responses map[string]string) string {
	if len(responses) == 0 {
		return noSpecialistsReply
	}

	var inputs strings.Builder
	for _, sp := range selected {
		text, ok := responses[sp.Key]
		if !ok {
			continue
		}
		fmt.Fprintf(&inputs, "\n### %s:\n%s\n", sp.Name, text)
	}

	metaPrompt := fmt.Sprintf(`You are an expert coordinator. Combine the responses from different specialists into one coherent answer to the user's question.

User Question: %s

Specialist Responses:%s

Your task:
1. Analyze the specialist responses
2. Resolve contradictions
3. Highlight the most important points
4. Produce one consistent, comprehensive, actionable answer

Coordinated answer:`, message, inputs.String())

	resp, err := o.dispatcher.BalanceLoad(ctx, metaPrompt, "")
	if err != nil {
		o.logger.Warn("synthesis call failed, falling back to concatenation", "error", err)
		return concatenate(selected, responses)
	}
	return resp.Content
}

// concatenate joins the specialist responses under per-specialist headings
// in selection order.
func concatenate(selected []Specialist, responses map[string]string) string {
	var parts []string
	for _, sp := range selected {
		if text, ok := responses[sp.Key]; ok {
			parts = append(parts, fmt.Sprintf("## %s\n%s\n", sp.Name, text))
		}
	}
	return strings.Join(parts, "\n")
}

// suggestActions concatenates each selected specialist's action list in
// selection order, capped at five entries.
func suggestActions(selected []Specialist) []string {
	var actions []string
	for _, sp := range selected {
		actions = append(actions, sp.Actions...)
	}
	if len(actions) > maxSuggestedActions {
		actions = actions[:maxSuggestedActions]
	}
	return actions
}
