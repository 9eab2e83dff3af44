package llm

import (
	"encoding/json"
	"strings"
)

// MaxEvidenceChars caps each evidence block sent to the adjudicator.
const MaxEvidenceChars = 12000

// BuildSystemPrompt composes the system message shared by every adjudication.
func BuildSystemPrompt(req Request) string {
	parts := []string{
		"Eres un especialista en glosa aduanal mexicana. Trabajas sólo con la evidencia proporcionada.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Never output null. If a field is not present in the evidence, omit it.",
		"Copy identifiers, numbers and amounts exactly as printed; drop thousands separators from amounts.",
	}
	if instr := strings.TrimSpace(req.Instructions); instr != "" {
		parts = append(parts, "\nInstrucciones:\n"+instr)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt renders the evidence blocks in order, each under its label.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	for i, ev := range req.Evidence {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("### ")
		b.WriteString(ev.Label)
		b.WriteString("\n")
		content := strings.TrimSpace(ev.Content)
		if len(content) > MaxEvidenceChars {
			b.WriteString(content[:MaxEvidenceChars])
			b.WriteString("\n…(truncated)")
		} else {
			b.WriteString(content)
		}
	}
	return b.String()
}

// SchemaJSON renders a schema for inclusion in a prompt.
func SchemaJSON(schema map[string]any) string {
	b, _ := json.MarshalIndent(schema, "", "  ")
	return string(b)
}
