package focus

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/prompts"
)

// Label is the content category the ranking model assigns a chunk.
type Label string

// Labels the ranking model may assign.
const (
	LabelTitle             Label = "title"
	LabelCompany           Label = "company"
	LabelLocation          Label = "location"
	LabelAbout             Label = "about"
	LabelResponsibilities  Label = "responsibilities"
	LabelRequirements      Label = "requirements"
	LabelBenefits          Label = "benefits"
	LabelApplyInstructions Label = "apply_instructions"
	LabelGeneral           Label = "general"
	LabelNavOrFooter       Label = "nav_or_footer"
	LabelUnrelated         Label = "unrelated"
)

// labelAdjustments are the fixed per-label additions blended with the
// model's importance score.
var labelAdjustments = map[Label]float64{
	LabelTitle:             0.5,
	LabelCompany:           0.5,
	LabelLocation:          0.3,
	LabelAbout:             0.3,
	LabelResponsibilities:  0.2,
	LabelRequirements:      0.2,
	LabelBenefits:          0.15,
	LabelApplyInstructions: 0.15,
	LabelNavOrFooter:       -0.4,
	LabelUnrelated:         -0.4,
}

// continuationAdjustment is added when a chunk continues the previous one.
const continuationAdjustment = 0.15

// previousPreviewChars is how much of the previous chunk each ranking call
// sees for continuation detection.
const previousPreviewChars = 200

// Memory tracks which core job fields have already been seen earlier in
// the document. Flags merge forward additively: once true, always true.
type Memory struct {
	Title            bool `json:"title"`
	Company          bool `json:"company"`
	Location         bool `json:"location"`
	Responsibilities bool `json:"responsibilities"`
	Requirements     bool `json:"requirements"`
}

// merge folds another memory into m additively.
func (m *Memory) merge(other Memory) {
	m.Title = m.Title || other.Title
	m.Company = m.Company || other.Company
	m.Location = m.Location || other.Location
	m.Responsibilities = m.Responsibilities || other.Responsibilities
	m.Requirements = m.Requirements || other.Requirements
}

// RankedChunk is the ranking result for one candidate chunk.
type RankedChunk struct {
	Chunk        Chunk   `json:"chunk"`
	Importance   float64 `json:"importance"`
	Label        Label   `json:"label"`
	Continuation bool    `json:"continuation"`
	FinalScore   float64 `json:"final_score"`
}

// rankResponse is the constrained JSON shape of one ranking call.
type rankResponse struct {
	Importance   float64 `json:"importance"`
	Label        string  `json:"label"`
	Continuation bool    `json:"continuation"`
	Memory       Memory  `json:"memory"`
}

// Rank processes candidate chunks in document order, one LLM call each.
// Every call carries the accumulated field memory and a preview of the
// previous candidate so later chunks are judged with full context of what
// is already known. A failed call degrades that chunk to a neutral score
// rather than aborting the pass.
func Rank(ctx context.Context, candidates []Chunk, client llm.Client, verbose bool) ([]RankedChunk, error) {
	template := prompts.MustGet("focus.json", "rank-chunk")

	var memory Memory
	ranked := make([]RankedChunk, 0, len(candidates))

	for i, chunk := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		memJSON, _ := json.Marshal(memory)
		previous := ""
		if i > 0 {
			previous = candidates[i-1].Text
			if len(previous) > previousPreviewChars {
				previous = previous[:previousPreviewChars]
			}
		}

		prompt := prompts.Format(template, map[string]string{
			"Memory":   string(memJSON),
			"Previous": previous,
			"Chunk":    chunk.Text,
		})

		rc := RankedChunk{Chunk: chunk, Importance: 0.5, Label: LabelGeneral}

		response, err := client.Generate(ctx, prompt, llm.TierFast, &llm.Options{Format: llm.FormatJSON})
		if err == nil {
			var parsed rankResponse
			if jsonErr := json.Unmarshal([]byte(llm.CleanJSONBlock(response)), &parsed); jsonErr == nil {
				rc.Importance = clampScore(parsed.Importance)
				rc.Continuation = parsed.Continuation
				if label := Label(parsed.Label); validLabel(label) {
					rc.Label = label
				}
				memory.merge(parsed.Memory)
			} else if verbose {
				log.Printf("[FOCUS] Unparseable rank response for %s: %v", chunk.ID, jsonErr)
			}
		} else if verbose {
			log.Printf("[FOCUS] Rank call failed for %s: %v", chunk.ID, err)
		}

		rc.FinalScore = rc.Importance + labelAdjustments[rc.Label]
		if rc.Continuation {
			rc.FinalScore += continuationAdjustment
		}

		ranked = append(ranked, rc)
	}

	return ranked, nil
}

func validLabel(l Label) bool {
	switch l {
	case LabelTitle, LabelCompany, LabelLocation, LabelAbout, LabelResponsibilities,
		LabelRequirements, LabelBenefits, LabelApplyInstructions, LabelGeneral,
		LabelNavOrFooter, LabelUnrelated:
		return true
	}
	return false
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
