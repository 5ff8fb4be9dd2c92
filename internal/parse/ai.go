package parse

import (
	"context"
	"encoding/json"
	"fmt"

	"zeroinvoice/internal"
	"zeroinvoice/internal/gemini"
)

const extractionPrompt = `Analyze this invoice text and extract structured data. Return ONLY a valid JSON object with no additional text or markdown formatting.

Invoice Text:
%s

Extract and return a JSON object with these fields:
{
  "invoiceNumber": "string or null",
  "issueDate": "YYYY-MM-DD or null",
  "dueDate": "YYYY-MM-DD or null",
  "customerName": "string or null",
  "customerEmail": "string or null",
  "customerAddress": {
    "street": "string or null",
    "city": "string or null",
    "state": "string or null",
    "zipCode": "string or null",
    "country": "string or null"
  },
  "lineItems": [
    {
      "name": "string",
      "description": "string",
      "quantity": number,
      "unitPrice": number
    }
  ],
  "subtotal": number or null,
  "tax": number or null,
  "taxRate": number or null (as decimal, e.g., 0.08 for 8%%),
  "total": number or null,
  "notes": "string or null"
}

Important:
- Extract dates in YYYY-MM-DD format
- Convert all amounts to numbers (no currency symbols)
- Tax rate should be decimal (e.g., 0.08 for 8%%)
- Set fields to null if not found
- Ensure lineItems is an array (empty if none found)
- Return ONLY the JSON object, no markdown code blocks or extra text`

// parseWithAI sends the raw text plus the field schema to the model with
// low sampling temperature, then decodes the single JSON object it asked
// for. Confidence scales with extraction completeness: floored at 0.5 for
// any response that parses, capped at 0.95 because AI extraction is never
// treated as certain.
func (p *Parser) parseWithAI(ctx context.Context, text string) (internal.ParsedInvoiceData, float64, error) {
	response, err := p.ai.GenerateContent(ctx, fmt.Sprintf(extractionPrompt, text), gemini.GenerationOptions{
		Temperature:     0.3,
		MaxOutputTokens: p.cfg.GeminiMaxTokens,
	})
	if err != nil {
		return internal.ParsedInvoiceData{}, 0, err
	}

	cleaned := gemini.StripCodeFence(response)

	var parsed internal.ParsedInvoiceData
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return internal.ParsedInvoiceData{}, 0, fmt.Errorf("ai response is not valid JSON: %w", err)
	}

	// The model sometimes returns "" where it was told to use null.
	parsed.InvoiceNumber = trimmedOrNil(parsed.InvoiceNumber)
	parsed.IssueDate = trimmedOrNil(parsed.IssueDate)
	parsed.DueDate = trimmedOrNil(parsed.DueDate)
	parsed.CustomerName = trimmedOrNil(parsed.CustomerName)
	parsed.CustomerEmail = trimmedOrNil(parsed.CustomerEmail)
	parsed.Notes = trimmedOrNil(parsed.Notes)
	if parsed.LineItems == nil {
		parsed.LineItems = []internal.ParsedLineItem{}
	}

	confidence := 0.5 + float64(countExtractedFields(parsed))/10*0.5
	if confidence > 0.95 {
		confidence = 0.95
	}

	return parsed, confidence, nil
}
