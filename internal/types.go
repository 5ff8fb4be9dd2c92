package internal

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type Customer struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Address   Address `json:"billingAddress"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type LineItem struct {
	ID          string  `json:"id"`
	ItemID      *string `json:"itemId,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

type Invoice struct {
	ID               string        `json:"id"`
	InvoiceNumber    string        `json:"invoiceNumber"`
	CustomerID       string        `json:"customerId"`
	CustomerSnapshot Customer      `json:"customerSnapshot"`
	LineItems        []LineItem    `json:"lineItems"`
	Subtotal         float64       `json:"subtotal"`
	Tax              float64       `json:"tax"`
	TaxRate          float64       `json:"taxRate"`
	Total            float64       `json:"total"`
	Status           InvoiceStatus `json:"status"`
	TemplateID       string        `json:"templateId"`
	IssueDate        string        `json:"issueDate"`
	DueDate          string        `json:"dueDate"`
	Notes            *string       `json:"notes,omitempty"`
	CreatedAt        string        `json:"createdAt"`
	UpdatedAt        string        `json:"updatedAt"`
}

type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawDocument is an uploaded file awaiting extraction. The payload is owned
// by the import session entry referencing it and is discarded once the text
// has been pulled out.
type RawDocument struct {
	Name string
	Size int64
	Data []byte
}

type PDFMetadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creationDate,omitempty"`
}

type ExtractionResult struct {
	Text      string      `json:"text"`
	PageCount int         `json:"pageCount"`
	Metadata  PDFMetadata `json:"metadata"`
}

// ParsedLineItem is one row of the extracted item table. It becomes a
// LineItem with an identity only during conversion to the partial invoice.
type ParsedLineItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// ParsedInvoiceData is the parser's best-effort structured guess. Every
// scalar is a pointer: nil means "not found", never a defaulted value.
type ParsedInvoiceData struct {
	InvoiceNumber   *string          `json:"invoiceNumber"`
	IssueDate       *string          `json:"issueDate"`
	DueDate         *string          `json:"dueDate"`
	CustomerName    *string          `json:"customerName"`
	CustomerEmail   *string          `json:"customerEmail"`
	CustomerAddress *Address         `json:"customerAddress"`
	LineItems       []ParsedLineItem `json:"lineItems"`
	Subtotal        *float64         `json:"subtotal"`
	Tax             *float64         `json:"tax"`
	TaxRate         *float64         `json:"taxRate"`
	Total           *float64         `json:"total"`
	Notes           *string          `json:"notes"`
}

// MatchDecision classifies one extracted entity against the catalog. Either
// ExistingID is set or IsNew is true; MatchConfidence is 0 when no match was
// attempted.
type MatchDecision struct {
	ExistingID      *string `json:"existingId,omitempty"`
	IsNew           bool    `json:"isNew"`
	MatchConfidence float64 `json:"matchConfidence"`
}

// ExtractedInvoice aggregates everything the pipeline learned about one
// document. ItemMatches is keyed by generated line-item ID so two extracted
// items sharing a display name keep independent decisions.
type ExtractedInvoice struct {
	RawText       string                   `json:"rawText"`
	Parsed        ParsedInvoiceData        `json:"parsed"`
	Invoice       Invoice                  `json:"invoice"`
	Confidence    float64                  `json:"confidence"`
	Errors        []string                 `json:"errors"`
	Warnings      []string                 `json:"warnings"`
	CustomerMatch MatchDecision            `json:"customerMatch"`
	ItemMatches   map[string]MatchDecision `json:"itemMatches"`
}

type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportReady      ImportStatus = "ready"
	ImportSuccess    ImportStatus = "success"
	ImportFailed     ImportStatus = "failed"
)

type ImportEntry struct {
	ID        string            `json:"id"`
	Filename  string            `json:"fileName"`
	Size      int64             `json:"fileSize"`
	Status    ImportStatus      `json:"status"`
	Progress  int               `json:"progress"`
	Extracted *ExtractedInvoice `json:"extractedInvoice,omitempty"`
	Error     *string           `json:"error,omitempty"`
}

type ImportStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Ready      int `json:"ready"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
}

// CommitBatch is the set of records materialized from the selected ready
// entries, applied to the domain store as three appends.
type CommitBatch struct {
	Customers []Customer
	Items     []Item
	Invoices  []Invoice
}
