package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sonde-dev/sonde/internal/engine"
	"github.com/sonde-dev/sonde/internal/graph"
	"github.com/sonde-dev/sonde/internal/research"
)

// SynthesisConfig bounds each synthesis sub-call. Backoff is linear: the
// delay before attempt n is BaseDelay*n, unlike the multiplicative policy
// used for searches.
type SynthesisConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// SynthesisResult collects the outputs of the sequential synthesis sub-calls.
type SynthesisResult struct {
	Title            string
	ExecutiveSummary string
	Sections         []Section
	ConsolidatedData string
	Conclusion       string
}

// Synthesizer turns settled task results into a report through several
// sequential model calls: metadata, executive summary, section topics, one
// call per section, consolidated data, and conclusion. Exhausting any
// sub-call's retries aborts the whole synthesis stage.
type Synthesizer struct {
	model research.ModelInvoker
	cfg   SynthesisConfig
}

func NewSynthesizer(model research.ModelInvoker, cfg SynthesisConfig) *Synthesizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Synthesizer{model: model, cfg: cfg}
}

// Synthesize runs the sub-call sequence over whatever results exist. Failed
// tasks are noted in the material rather than hidden.
func (s *Synthesizer) Synthesize(ctx context.Context, goal, brief string, tasks []graph.TaskNode, results map[string]engine.Result) (*SynthesisResult, error) {
	material := buildMaterial(tasks, results)
	out := &SynthesisResult{}

	err := s.callWithRetry(ctx, "metadata", func(ctx context.Context) error {
		var meta struct {
			Title string `json:"title"`
		}
		prompt := fmt.Sprintf("Propose report metadata for this research.\nRespond with a JSON object: {\"title\": string}.\n\nGoal: %s\nBrief: %s", goal, brief)
		if err := s.model.InvokeJSON(ctx, prompt, &meta); err != nil {
			return err
		}
		out.Title = meta.Title
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.callWithRetry(ctx, "executive_summary", func(ctx context.Context) error {
		prompt := fmt.Sprintf("Write an executive summary for the research below.\n\nGoal: %s\n\n%s", goal, material)
		text, err := s.model.Invoke(ctx, prompt)
		out.ExecutiveSummary = text
		return err
	})
	if err != nil {
		return nil, err
	}

	var topics []string
	err = s.callWithRetry(ctx, "section_topics", func(ctx context.Context) error {
		var resp struct {
			Topics []string `json:"topics"`
		}
		prompt := fmt.Sprintf("List the section topics a report on this research should cover, in order.\nRespond with a JSON object: {\"topics\": [string]}.\n\nGoal: %s\n\n%s", goal, material)
		if err := s.model.InvokeJSON(ctx, prompt, &resp); err != nil {
			return err
		}
		if len(resp.Topics) == 0 {
			return fmt.Errorf("model returned no section topics")
		}
		topics = resp.Topics
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, topic := range topics {
		topic := topic
		err = s.callWithRetry(ctx, "section:"+topic, func(ctx context.Context) error {
			prompt := fmt.Sprintf("Write the report section %q using only the material below.\n\nGoal: %s\n\n%s", topic, goal, material)
			text, err := s.model.Invoke(ctx, prompt)
			if err != nil {
				return err
			}
			out.Sections = append(out.Sections, Section{Topic: topic, Content: text})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = s.callWithRetry(ctx, "consolidated_data", func(ctx context.Context) error {
		prompt := fmt.Sprintf("Extract the key data points from the material below as a compact reference list.\n\n%s", material)
		text, err := s.model.Invoke(ctx, prompt)
		out.ConsolidatedData = text
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.callWithRetry(ctx, "conclusion", func(ctx context.Context) error {
		prompt := fmt.Sprintf("Write the conclusion of the report.\n\nGoal: %s\n\nExecutive summary: %s\n\n%s", goal, out.ExecutiveSummary, material)
		text, err := s.model.Invoke(ctx, prompt)
		out.Conclusion = text
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// callWithRetry runs one synthesis sub-call with linear backoff. Exhaustion
// is fatal to the stage.
func (s *Synthesizer) callWithRetry(ctx context.Context, name string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := call(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}
		delay := time.Duration(attempt) * s.cfg.BaseDelay
		log.Warn().
			Str("call", name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(lastErr).
			Msg("synthesis sub-call failed, retrying")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("synthesis call %s failed after %d attempts: %w", name, s.cfg.MaxAttempts, lastErr)
}

// buildMaterial renders settled task results into prompt material. Failed
// tasks appear with their error so the report can acknowledge gaps.
func buildMaterial(tasks []graph.TaskNode, results map[string]engine.Result) string {
	var b strings.Builder
	for _, t := range tasks {
		r, ok := results[t.ID]
		if !ok {
			continue
		}
		if r.Status == engine.StatusSuccess {
			fmt.Fprintf(&b, "## %s\n%s\n\n", t.Name, r.Content)
		} else {
			fmt.Fprintf(&b, "## %s\n(unavailable: %s)\n\n", t.Name, r.Err)
		}
	}
	return b.String()
}
