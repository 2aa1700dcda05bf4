package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/prompts"
	"github.com/jonathan/apply-assist/internal/schemas"
)

// Body slice sizes for the LLM strategy. A timed-out call is retried once
// with the smaller slice.
const (
	bodySliceChars  = 12000
	retrySliceChars = 6000
)

// fromLLM sends a slice of the page content to the model and parses the
// response into a JobDetail. The slice is centered on the content so
// boilerplate at both ends is the first thing dropped.
func fromLLM(ctx context.Context, client llm.Client, pageURL, content string) Outcome {
	content = strings.TrimSpace(content)
	if content == "" {
		return notFound(StrategyLLM)
	}

	response, err := callExtractModel(ctx, client, pageURL, bodySlice(content, bodySliceChars))
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		response, err = callExtractModel(ctx, client, pageURL, bodySlice(content, retrySliceChars))
	}
	if err != nil {
		return failed(StrategyLLM, fmt.Errorf("model extraction failed: %w", err))
	}

	detail, err := parseDetailResponse(response)
	if err != nil {
		return failed(StrategyLLM, err)
	}
	if !detailTitleOK(detail) {
		return notFound(StrategyLLM)
	}
	return found(StrategyLLM, detail)
}

func callExtractModel(ctx context.Context, client llm.Client, pageURL, content string) (string, error) {
	template, err := prompts.Get("extract.json", "extract-job-detail")
	if err != nil {
		return "", err
	}
	prompt := prompts.Format(template, map[string]string{
		"URL":     pageURL,
		"Content": content,
	})
	return client.Generate(ctx, prompt, llm.TierGeneral, &llm.Options{
		Format:      llm.FormatJSON,
		Temperature: 0.1,
	})
}

func parseDetailResponse(response string) (*JobDetail, error) {
	cleaned := []byte(llm.CleanJSONBlock(response))

	if err := schemas.ValidateJobRecord(cleaned); err != nil {
		var validationErr *schemas.ValidationError
		if !errors.As(err, &validationErr) {
			return nil, fmt.Errorf("model returned invalid JSON: %w", err)
		}
		// Structurally parseable but off-schema responses are still worth
		// salvaging for title and company.
	}

	var detail JobDetail
	if err := json.Unmarshal(cleaned, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return &detail, nil
}

// bodySlice returns a window of at most limit characters centered on the
// content, snapped outward to whitespace where possible.
func bodySlice(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	start := (len(content) - limit) / 2
	end := start + limit
	if idx := strings.IndexAny(content[start:end], " \n\t"); idx >= 0 && idx < limit/10 {
		start += idx + 1
	}
	if idx := strings.LastIndexAny(content[start:end], " \n\t"); idx >= 0 && end-start-idx < limit/10 {
		end = start + idx
	}
	return content[start:end]
}
