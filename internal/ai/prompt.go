package ai

import (
	"fmt"
	"strings"
)

const systemInstruction = `You fill document templates. Reply with a single JSON object and nothing else.
Keys are template placeholder names. Values are strings, numbers, booleans, lists or objects.
List-valued keys:
- experience_list: list of {"title","company","location","start","end","bullets":[string]}
- projects: list of {"name","description","technologies":[string],"link"}
- education: list of {"degree","institution","location","start","end","details"}
- achievements: list of strings
- skills: list of strings
Only include list keys that make sense for the document type. Never invent contact details;
copy them from the provided fields.`

// SystemInstruction is the fixed instruction sent with every request.
func SystemInstruction() string {
	return systemInstruction
}

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document type: %s\n\n", req.DocType)
	b.WriteString("Known fields (keep these values, fill in everything else):\n")
	b.WriteString(MarshalFields(req.Fields))
	b.WriteString("\n")
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		b.WriteString("\nAdditional context from the user:\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the complete JSON object of template fields.")
	return b.String()
}
