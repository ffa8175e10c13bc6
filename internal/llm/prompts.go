// Package llm builds prompts from retrieved context and sends them to an
// OpenAI-compatible chat model.
package llm

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/textutil"
)

// NoContext stands in for the context when retrieval found nothing.
const NoContext = "No relevant context found."

// DefaultSummaryRunes caps the document text placed in a summary prompt.
const DefaultSummaryRunes = 4000

// Document types with a dedicated summary prompt.
const (
	DocInvoice      = "invoice"
	DocPrescription = "prescription"
	DocLogistics    = "logistics"
	DocGeneral      = "general"
)

// DocTypes lists the accepted document types.
var DocTypes = []string{DocGeneral, DocInvoice, DocPrescription, DocLogistics}

// NormalizeDocType maps unknown or empty types to DocGeneral.
func NormalizeDocType(docType string) string {
	t := strings.ToLower(strings.TrimSpace(docType))
	for _, known := range DocTypes {
		if t == known {
			return t
		}
	}
	return DocGeneral
}

// BuildContext joins retrieved chunk texts with blank lines.
func BuildContext(results []domain.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Chunk.Text)
	}
	if joined := strings.Join(parts, "\n\n"); strings.TrimSpace(joined) != "" {
		return joined
	}
	return NoContext
}

// QuestionPrompt asks the model to answer from the given context.
func QuestionPrompt(contextText, question string) string {
	return fmt.Sprintf("Use the following document context to answer:\n\n%s\n\nQuestion: %s", contextText, question)
}

// SummaryPrompt asks for a summary or field extraction suited to docType.
// The document text is cut to maxRunes; maxRunes <= 0 uses DefaultSummaryRunes.
func SummaryPrompt(docType, text string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultSummaryRunes
	}
	text = textutil.TruncateRunes(text, maxRunes)
	switch NormalizeDocType(docType) {
	case DocInvoice:
		return `You are analyzing an invoice document. Please extract:
- Invoice number
- Date
- Billed to (client)
- Items (description, quantity, unit price, total)
- Total amount
- Tax
- Due date

Document content:
` + text
	case DocPrescription:
		return `This is a medical prescription. Please extract:
- Patient name (if present)
- Doctor name
- Medicines (name, dosage, frequency, duration)
- Additional instructions
- Tests

Prescription text:
` + text
	case DocLogistics:
		return `Analyze this logistics receipt. Extract:
- Tracking ID
- Shipment date
- Sender and recipient
- Items and quantities
- Delivery address
- Status

Text:
` + text
	default:
		return "Summarize the following document and extract any key insights or structured data:\n\n" + text
	}
}
