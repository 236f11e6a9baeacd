// Package narrative asks a language model to turn a dataset summary into a
// short analytical story. Narration never fails a run: any problem yields an
// unavailable Narrative carrying the reason.
package narrative

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/autolysis/internal/ai"
	"github.com/KaramelBytes/autolysis/internal/analysis"
	"github.com/KaramelBytes/autolysis/internal/utils"
	"github.com/rs/zerolog"
)

const systemPrompt = "You are a data analyst. Write a clear, insightful narrative about a dataset " +
	"from the summary you are given: what the data is, what the analysis shows, " +
	"the most important insights, and what could be done with them. " +
	"Respond in Markdown without a top-level heading."

// Narrative is either generated text or the reason none is available.
type Narrative struct {
	Text      string
	Available bool
	Reason    string
}

// Unavailable builds a fallback Narrative.
func Unavailable(reason string) Narrative {
	return Narrative{Reason: reason}
}

// Config tunes the request sent to the model.
type Config struct {
	Model           string
	Temperature     float64
	MaxPromptTokens int
}

// Narrator requests narratives from a Runtime. A nil Runtime disables
// narration.
type Narrator struct {
	rt  ai.Runtime
	cfg Config
	log zerolog.Logger
}

func New(rt ai.Runtime, cfg Config, log zerolog.Logger) *Narrator {
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 3000
	}
	return &Narrator{rt: rt, cfg: cfg, log: log.With().Str("component", "narrator").Logger()}
}

// Narrate returns a narrative for s. It never returns an error; failures are
// logged and reported through Narrative.Reason.
func (n *Narrator) Narrate(ctx context.Context, s *analysis.Summary, path string) Narrative {
	if n.rt == nil {
		return Unavailable("narration disabled")
	}
	if s == nil {
		return Unavailable("no summary to narrate")
	}
	req := ai.GenerateRequest{
		Model:       n.cfg.Model,
		Temperature: n.cfg.Temperature,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: n.prompt(s, path)},
		},
	}
	resp, err := n.rt.Generate(ctx, req)
	if err != nil {
		reason := describeFailure(err)
		n.log.Warn().Err(err).Str("model", req.Model).Msg("narrative request failed")
		return Unavailable(reason)
	}
	text, err := resp.FirstContent()
	if err != nil {
		n.log.Warn().Err(err).Str("request_id", resp.RequestID).Msg("narrative response unusable")
		return Unavailable("the model returned no text")
	}
	n.log.Info().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("narrative generated")
	return Narrative{Text: text, Available: true}
}

func (n *Narrator) prompt(s *analysis.Summary, path string) string {
	if s.Source == "" {
		cp := *s
		cp.Source = path
		s = &cp
	}
	p := s.Describe()
	if utils.CountTokens(p) > n.cfg.MaxPromptTokens {
		n.log.Debug().Int("limit", n.cfg.MaxPromptTokens).Msg("truncating summary prompt")
		p = utils.TruncateToTokenLimit(p, n.cfg.MaxPromptTokens)
	}
	return p
}

func describeFailure(err error) string {
	var (
		auth  *ai.AuthError
		rate  *ai.RateLimitError
		model *ai.ModelNotFoundError
		quota *ai.QuotaExceededError
		srv   *ai.ServerError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "the request timed out or was cancelled"
	case errors.As(err, &auth):
		return "the API credential was rejected"
	case errors.As(err, &rate):
		return "the service rate-limited the request"
	case errors.As(err, &model):
		return "the model is not available"
	case errors.As(err, &quota):
		return "the API quota is exhausted"
	case errors.As(err, &srv):
		return fmt.Sprintf("the service returned HTTP %d", srv.StatusCode)
	}
	return "the service request failed"
}
