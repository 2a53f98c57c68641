package assistant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/diewo77/ap-invoices/internal/models"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are an AI assistant helping with invoice analysis. You MUST ONLY use the data provided below to answer queries. Do not make up or hallucinate any information that is not directly supported by this data.

INVOICE DATA SUMMARY:
- Total invoices: {{.TotalInvoices}}
- Total amount: {{.TotalAmount}}
- Invoice types: {{.InvoiceTypes}}
- Monthly totals: {{.MonthlyTotals}}

RECENT INVOICES:
{{.Invoices}}

USER QUERY: {{.Query}}

Based ONLY on the invoice data provided above, respond to the user query. If the query is asking for specific invoice data, return both:
1. A natural language response to the query
2. The specific data requested in a structured format

Format your response as valid JSON with the following structure:
{
  "message": "Your natural language response to the user query",
  "invoices": [array of matching invoice objects] (optional),
  "total": numeric total if applicable (optional),
  "analysis": "Additional analysis if relevant" (optional),
  "chart_data": structured data for visualization if relevant (optional),
  "confidence": "high" | "medium" | "low" - indicate your confidence in the answer based on available data
}

IMPORTANT GUIDELINES:
1. Return ONLY the JSON object. Do not include markdown code blocks (like ` + "```" + `json) or any other text outside the JSON structure.
2. If you cannot find the answer in the provided data, state clearly in your message that you don't have enough information to answer.
3. Do not hallucinate or make up information that is not in the data provided.
4. Be specific about which data you used to form your answer.
5. If there are no results matching a query, explicitly state that no matching invoices were found rather than making up an answer.

If you're uncertain or the query can't be answered with the available data, provide a helpful response explaining what information is needed.
`))

type promptData struct {
	TotalInvoices int64
	TotalAmount   string
	InvoiceTypes  string
	MonthlyTotals string
	Invoices      string
	Query         string
}

// buildPrompt renders the model prompt. The same inputs always give the same text.
func buildPrompt(query string, summary *models.InvoiceSummary, invoices []contextInvoice) (string, error) {
	types, err := json.Marshal(summary.InvoiceTypes)
	if err != nil {
		return "", fmt.Errorf("encode invoice types: %w", err)
	}
	months, err := json.Marshal(summary.MonthlyTotals)
	if err != nil {
		return "", fmt.Errorf("encode monthly totals: %w", err)
	}
	if invoices == nil {
		invoices = []contextInvoice{}
	}
	list, err := json.MarshalIndent(invoices, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode invoices: %w", err)
	}

	var sb strings.Builder
	err = promptTemplate.Execute(&sb, promptData{
		TotalInvoices: summary.TotalInvoices,
		TotalAmount:   strconv.FormatFloat(summary.TotalAmount, 'f', -1, 64),
		InvoiceTypes:  string(types),
		MonthlyTotals: string(months),
		Invoices:      string(list),
		Query:         query,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
