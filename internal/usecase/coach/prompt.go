package coach

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SystemPrompt frames the enrichment call.
const SystemPrompt = `You are the Assignment Coach. You help students understand and complete assignments.
Always answer with a single valid JSON object and no text outside it.`

// EnrichmentPrompt asks the model to improve the tool draft for payload. The
// answer must keep the draft's JSON shape.
func EnrichmentPrompt(payload, draft json.RawMessage) string {
	return fmt.Sprintf(`### TASK
Improve the draft guidance below for this student. Expand the task plan with concrete detail,
add personalized resource suggestions, and tailor the feedback and motivation to the student's
learning style, progress, skills and weaknesses.

### DRAFT
%s

### ASSIGNMENT
%s

### RULES
- Output valid JSON only, with the same top-level keys as the draft.
- Keep numeric estimates consistent with the draft.
- Timestamps are ISO-8601 UTC.
`, indent(draft), indent(payload))
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
