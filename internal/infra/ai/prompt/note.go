package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// maxExcerpts bounds how many posts are quoted back to the model.
const maxExcerpts = 5

// GetSystemPrompt gives the model its role and the output rules.
func GetSystemPrompt() string {
	return `You are assisting a psychiatrist who reviews the sentiment analysis of a patient's public posts.
Write a short clinical note in French, plain text only, no markdown.

Rules:
- At most 120 words.
- Describe the dominant emotional states using the percentages given.
- Mention anxiety explicitly when its share is above 20%.
- Do not diagnose. Suggest points to explore during the next consultation.
- Never quote a post in full; paraphrase.`
}

// GetUserPrompt renders the payload of one analysis for the model.
func GetUserPrompt(patientName string, p *patients.AnalysisPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", patientName)
	fmt.Fprintf(&b, "Handle: @%s\n", p.Handle)
	fmt.Fprintf(&b, "Posts analysed: %d\n", p.ItemsAnalyzed)

	b.WriteString("Distribution:\n")
	if p.OverallSummary != nil {
		for pair := p.OverallSummary.Oldest(); pair != nil; pair = pair.Next() {
			fmt.Fprintf(&b, "- %s: %.1f%%\n", patients.Label(pair.Key), pair.Value*100)
		}
	}

	n := len(p.Predictions)
	if n > maxExcerpts {
		n = maxExcerpts
	}
	if n > 0 {
		b.WriteString("Excerpts:\n")
	}
	for _, pred := range p.Predictions[:n] {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", patients.Label(pred.PredictedState), truncate(pred.Text, 200), pred.CreatedAt)
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
