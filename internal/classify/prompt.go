package classify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Veraticus/spice-deduct/internal/model"
)

// SystemPrompt frames every classification request.
const SystemPrompt = "You are a tax expert. Follow the research process exactly and apply the critical rules strictly. Default to entertainment (0%) when uncertain."

const vendorPromptTemplate = `Classify this vendor for business expense deduction purposes.

Vendor: {{.Vendor}}
Location: {{if .Location}}{{.Location}}{{else}}Unknown{{end}}
Transaction details: {{if .Descriptions}}{{join .Descriptions "; "}}{{else}}None provided{{end}}

RESEARCH PROCESS:
1. Analyze the vendor name for obvious indicators of the type of business.
2. Research "{{.Vendor}}{{if .City}} {{.City}}{{end}}" to determine what the business primarily does.
3. Consider the location: a name like "Blank Street" in New York is a coffee chain, not a street.
4. If the vendor is unknown, analyze the transaction descriptions instead.

TAX CATEGORIES:
- ENTERTAINMENT (0% deductible): bars, clubs, venues, recreational activities, transportation
- MEALS (50% deductible): restaurants, cafes, coffee shops, food delivery, catering
- EMPLOYEE EVENTS (100% deductible): company-wide celebrations, holiday parties, team events for all employees

CRITICAL RULES:
1. Bars and alcohol-focused venues are always entertainment, even if they serve food.
2. Only classify as meals when food is clearly the primary purpose.
3. Only classify as employee events with explicit evidence such as "team event" or "team dinner".
4. Default to entertainment when uncertain.
5. Words like "dinner", "lunch", or "meal" in the details suggest meals.
6. Phrases like "team dinner" or "staff lunch" indicate employee events.

Respond with ONLY a JSON object in exactly this format:
{
  "business_type": "short description of the business",
  "classification": "entertainment" | "meals" | "employee-events",
  "deduction_rate": 0.0 | 0.5 | 1.0,
  "reason": "one sentence explaining the decision",
  "confidence": "high" | "medium" | "low"
}`

// PromptData is the vendor context rendered into a prompt.
type PromptData struct {
	Vendor       string
	Location     string
	City         string
	Descriptions []string
}

// PromptBuilder renders classification prompts.
type PromptBuilder struct {
	tmpl            *template.Template
	maxDescriptions int
}

// NewPromptBuilder parses the vendor prompt. At most maxDescriptions
// descriptions are included per vendor.
func NewPromptBuilder(maxDescriptions int) (*PromptBuilder, error) {
	funcMap := template.FuncMap{
		"join": strings.Join,
	}

	tmpl, err := template.New("vendor_prompt").Funcs(funcMap).Parse(vendorPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vendor prompt template: %w", err)
	}

	if maxDescriptions < 1 {
		maxDescriptions = 1
	}
	return &PromptBuilder{tmpl: tmpl, maxDescriptions: maxDescriptions}, nil
}

// Build renders the prompt for vendor.
func (pb *PromptBuilder) Build(vendor model.VendorRecord) (string, error) {
	descriptions := vendor.Descriptions
	if len(descriptions) > pb.maxDescriptions {
		descriptions = descriptions[:pb.maxDescriptions]
	}

	data := PromptData{
		Vendor:       vendor.Name,
		Location:     vendor.Location,
		City:         city(vendor.Location),
		Descriptions: descriptions,
	}

	var buf bytes.Buffer
	if err := pb.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute vendor prompt template: %w", err)
	}
	return buf.String(), nil
}

// city returns the part of a "City, State" location before the first comma.
func city(location string) string {
	c, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(c)
}
