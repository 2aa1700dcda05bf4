package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/prompts"
)

// snippetLimit caps the HTML sent to the LLM fallback.
const snippetLimit = 4000

// Input is one page to classify. HTML should be the cleaned document;
// StatusCode is optional (0 = unknown).
type Input struct {
	HTML       string
	URL        string
	StatusCode int
}

// Options controls the LLM fallback. With UseLLM=false classification is a
// pure function of the input.
type Options struct {
	UseLLM bool
	Client llm.Client
}

// Page classifies a page capture. The heuristic battery runs first; the LLM
// fallback is consulted only when the best heuristic score is zero or below
// the confidence threshold and opts permits it.
func Page(ctx context.Context, input Input, opts Options) (*Classification, error) {
	f, err := extractFeatures(input.HTML, input.URL, input.StatusCode)
	if err != nil {
		return nil, err
	}

	// Known non-job domains short-circuit before any scoring.
	if domain := knownNonJobDomain(f.url.Host); domain != "" {
		return &Classification{
			Type:       TypeIrrelevant,
			Confidence: 0.95,
			Method:     MethodHeuristic,
			Signals:    []string{"irrelevant:known-domain:" + domain},
		}, nil
	}

	best := &Classification{
		Type:       TypeIrrelevant,
		Confidence: 0,
		Method:     MethodHeuristic,
		Signals:    []string{},
	}
	for _, s := range scorers {
		score, signals := s.score(f)
		// Strictly-greater comparison preserves precedence order on ties.
		if score > best.Confidence {
			best = &Classification{
				Type:       s.pageType,
				Confidence: score,
				Method:     MethodHeuristic,
				Signals:    signals,
			}
		}
	}

	if (best.Confidence == 0 || best.Confidence < ConfidenceThreshold) && opts.UseLLM && opts.Client != nil {
		if llmResult, err := classifyWithLLM(ctx, input, f, opts.Client); err == nil {
			return llmResult, nil
		}
		// LLM failure degrades to the heuristic answer.
	}

	if best.Confidence == 0 {
		best.Signals = []string{"no-signals"}
	}
	return best, nil
}

// llmVerdict is the constrained response shape of the fallback call.
type llmVerdict struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func classifyWithLLM(ctx context.Context, input Input, f *pageFeatures, client llm.Client) (*Classification, error) {
	snippet := input.HTML
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}

	template := prompts.MustGet("classify.json", "classify-page")
	prompt := prompts.Format(template, map[string]string{
		"URL":       input.URL,
		"Title":     f.title,
		"LinkCount": strconv.Itoa(f.linkCount),
		"Snippet":   snippet,
	})

	response, err := client.Generate(ctx, prompt, llm.TierFast, &llm.Options{Format: llm.FormatJSON})
	if err != nil {
		return nil, fmt.Errorf("LLM classification failed: %w", err)
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(response)), &verdict); err != nil || !ValidType(verdict.Type) {
		// Unparseable or out-of-enum responses degrade to irrelevant.
		return &Classification{
			Type:       TypeIrrelevant,
			Confidence: 0.2,
			Method:     MethodLLM,
			Signals:    []string{"llm:unparseable-response"},
		}, nil
	}

	confidence := verdict.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}

	signals := []string{"llm:verdict"}
	if reason := strings.TrimSpace(verdict.Reason); reason != "" {
		signals = append(signals, "llm:reason:"+reason)
	}

	return &Classification{
		Type:       PageType(verdict.Type),
		Confidence: confidence,
		Method:     MethodLLM,
		Signals:    signals,
	}, nil
}
