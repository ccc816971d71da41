package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Task identifies which prompt a request is composed from.
type Task string

const (
	TaskExtract  Task = "extract"
	TaskCritique Task = "critique"
	TaskSemantic Task = "semantic"
)

const extractInstructions = `You are a construction finance analyst converting the text of a financial document into structured data.

Read the document text carefully and capture every field exactly as written. Do not infer values that are not present; leave them empty instead. Amounts are plain numbers without currency symbols or thousands separators. Dates use YYYY-MM-DD.

When reviewer feedback from a previous attempt is provided, treat it as a list of corrections to make in this attempt.`

const extractSpec = `Respond with a JSON object matching this exact structure:

{
  "invoice_number": "<string>",
  "invoice_date": "<YYYY-MM-DD>",
  "due_date": "<YYYY-MM-DD or null>",
  "contractor_id": "<string>",
  "contractor_name": "<string>",
  "contract_id": "<string>",
  "project_id": "<string>",
  "total_amount": 0.0,
  "retention_amount": null,
  "currency": "<ISO 4217 code>",
  "line_items": [
    {
      "id": "<string>",
      "description": "<string>",
      "quantity": 0.0,
      "unit_price": 0.0,
      "line_total": 0.0,
      "cost_code": "<string>"
    }
  ]
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Use null for dates and retention_amount that the document does not state
- Copy line totals as printed; do not recompute them`

const critiqueInstructions = `You are reviewing a failed attempt to extract structured data from a financial document.

You receive the document text, the structured data from the last attempt, and the issues detected in it. Explain precisely which fields are wrong or missing and where in the text the correct values can be found. Do not restate fields that were extracted correctly.`

const critiqueSpec = `Respond with a JSON object matching this exact structure:

{
  "feedback": "<correction instructions>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Keep feedback to concrete, field-level corrections`

const semanticInstructions = `You are checking whether each invoice line item is billed under a plausible cost code.

For every line item, judge whether the description of the work matches the cost code it is billed under. Report a mismatch only when you are confident the description belongs to a different trade or scope.`

const semanticSpec = `Respond with a JSON object matching this exact structure:

{
  "items": [
    {"index": 0, "valid": true, "confidence": 0.0, "reason": "<explanation>"}
  ]
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Include one entry per line item, indexed from zero
- confidence is between 0 and 1`

var prompts = map[Task][2]string{
	TaskExtract:  {extractInstructions, extractSpec},
	TaskCritique: {critiqueInstructions, critiqueSpec},
	TaskSemantic: {semanticInstructions, semanticSpec},
}

// Section is a titled block appended after the instructions and spec.
type Section struct {
	Title string
	Body  any
}

// Compose builds the prompt for task from its instructions, its output
// specification and any sections. String bodies are written verbatim; other
// bodies are rendered as indented JSON. Empty sections are skipped.
func Compose(task Task, sections ...Section) (string, error) {
	parts, ok := prompts[task]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}

	var sb strings.Builder
	sb.WriteString(parts[0])
	sb.WriteString("\n\n")
	sb.WriteString(parts[1])

	for _, s := range sections {
		var body string
		switch v := s.Body.(type) {
		case nil:
			continue
		case string:
			body = v
		default:
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return "", fmt.Errorf("serialize %s: %w", s.Title, err)
			}
			body = string(data)
		}

		if strings.TrimSpace(body) == "" {
			continue
		}

		sb.WriteString("\n\n")
		sb.WriteString(s.Title)
		sb.WriteString(":\n\n")
		sb.WriteString(body)
	}

	return sb.String(), nil
}
