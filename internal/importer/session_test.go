package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"zeroinvoice/internal"
	"zeroinvoice/internal/config"
	"zeroinvoice/internal/extract"
	"zeroinvoice/internal/parse"
)

type fakeStore struct {
	customers []internal.Customer
	items     []internal.Item
	templates []internal.Template
	invoices  []internal.Invoice
}

func (f *fakeStore) ListCustomers() ([]internal.Customer, error) { return f.customers, nil }
func (f *fakeStore) ListItems() ([]internal.Item, error)         { return f.items, nil }
func (f *fakeStore) ListTemplates() ([]internal.Template, error) { return f.templates, nil }
func (f *fakeStore) AppendCustomers(customers []internal.Customer) error {
	f.customers = append(f.customers, customers...)
	return nil
}
func (f *fakeStore) AppendItems(items []internal.Item) error {
	f.items = append(f.items, items...)
	return nil
}
func (f *fakeStore) AppendInvoices(invoices []internal.Invoice) error {
	f.invoices = append(f.invoices, invoices...)
	return nil
}

const invoiceText = "Acme Corp\n" +
	"Invoice #INV-1001\n" +
	"Consulting 2 $500.00 $1000.00\n" +
	"Total: $1,000.00\n"

func fakeExtractor(text string) *extract.Extractor {
	return &extract.Extractor{ExtractOne: func(doc internal.RawDocument, onProgress func(int)) (internal.ExtractionResult, error) {
		if onProgress != nil {
			onProgress(100)
		}
		return internal.ExtractionResult{Text: text, PageCount: 1}, nil
	}}
}

func testSession(store Store, text string) *Session {
	cfg := config.Config{MatchFuzzyThreshold: 0.7, ImportMaxConcurrent: 2}
	return NewSession(cfg, store, fakeExtractor(text), parse.NewParser(cfg, nil))
}

func pdfDoc(name string) internal.RawDocument {
	data := []byte("%PDF-1.7 stub")
	return internal.RawDocument{Name: name, Size: int64(len(data)), Data: data}
}

func TestProcessMovesEntriesToReady(t *testing.T) {
	s := testSession(&fakeStore{}, invoiceText)

	ids := s.AddFiles([]internal.RawDocument{pdfDoc("one.pdf"), pdfDoc("two.pdf")})
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}

	stats := s.Stats()
	if stats.Total != 2 || stats.Pending != 2 {
		t.Fatalf("before processing: %+v", stats)
	}

	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	for _, id := range ids {
		entry, ok := s.Entry(id)
		if !ok {
			t.Fatalf("entry %s disappeared", id)
		}
		if entry.Status != internal.ImportReady {
			t.Fatalf("entry %s: status %s, want ready (error=%v)", id, entry.Status, entry.Error)
		}
		if entry.Progress != 100 {
			t.Fatalf("entry %s: progress %d, want 100", id, entry.Progress)
		}
		if entry.Extracted == nil || entry.Extracted.Invoice.InvoiceNumber != "INV-1001" {
			t.Fatalf("entry %s: extracted invoice missing or wrong: %+v", id, entry.Extracted)
		}
	}
}

func TestProcessFailsInvalidPDF(t *testing.T) {
	s := testSession(&fakeStore{}, invoiceText)

	ids := s.AddFiles([]internal.RawDocument{
		{Name: "notes.txt", Size: 4, Data: []byte("text")},
		pdfDoc("real.pdf"),
	})
	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	bad, _ := s.Entry(ids[0])
	if bad.Status != internal.ImportFailed {
		t.Fatalf("invalid file: status %s, want failed", bad.Status)
	}
	if bad.Error == nil || *bad.Error != "Invalid PDF file" {
		t.Fatalf("invalid file error: %v", bad.Error)
	}

	good, _ := s.Entry(ids[1])
	if good.Status != internal.ImportReady {
		t.Fatalf("valid sibling must still process, got %s", good.Status)
	}
}

func TestProcessFailsOnMissingRequiredFields(t *testing.T) {
	s := testSession(&fakeStore{}, "zz\n")

	ids := s.AddFiles([]internal.RawDocument{pdfDoc("junk.pdf")})
	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	entry, _ := s.Entry(ids[0])
	if entry.Status != internal.ImportFailed {
		t.Fatalf("status %s, want failed", entry.Status)
	}
	if entry.Error == nil || !strings.Contains(*entry.Error, "Invoice number not found") {
		t.Fatalf("error: %v", entry.Error)
	}
	if entry.Extracted == nil {
		t.Fatal("failed entries keep the extraction for inspection")
	}
}

type deadStore struct {
	fakeStore
}

func (d *deadStore) ListCustomers() ([]internal.Customer, error) {
	return nil, errors.New("database is locked")
}

func TestProcessFailsBatchWhenStoreDies(t *testing.T) {
	s := testSession(&deadStore{}, invoiceText)

	ids := s.AddFiles([]internal.RawDocument{pdfDoc("a.pdf"), pdfDoc("b.pdf")})
	if err := s.Process(context.Background()); err == nil {
		t.Fatal("Process must surface the store error")
	}

	for _, id := range ids {
		entry, _ := s.Entry(id)
		if entry.Status != internal.ImportFailed {
			t.Fatalf("entry %s: status %s, want failed", id, entry.Status)
		}
		if entry.Error == nil || !strings.Contains(*entry.Error, "database is locked") {
			t.Fatalf("entry %s: error %v", id, entry.Error)
		}
		// Nothing may stay wedged at processing; failed entries are
		// still removable.
		if err := s.Remove(id); err != nil {
			t.Fatalf("Remove(%s): %v", id, err)
		}
	}
}

func TestRemove(t *testing.T) {
	s := testSession(&fakeStore{}, invoiceText)
	ids := s.AddFiles([]internal.RawDocument{pdfDoc("a.pdf"), pdfDoc("b.pdf")})

	if err := s.Remove(ids[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.Entry(ids[0]); ok {
		t.Fatal("removed entry still present")
	}
	if err := s.Remove("no-such-id"); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if got := s.Stats().Total; got != 1 {
		t.Fatalf("total after remove: %d, want 1", got)
	}
}

func TestRemoveFailed(t *testing.T) {
	s := testSession(&fakeStore{}, invoiceText)
	s.AddFiles([]internal.RawDocument{
		{Name: "bad.txt", Size: 3, Data: []byte("bad")},
		pdfDoc("good.pdf"),
	})
	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if removed := s.RemoveFailed(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	stats := s.Stats()
	if stats.Total != 1 || stats.Ready != 1 || stats.Failed != 0 {
		t.Fatalf("after RemoveFailed: %+v", stats)
	}
}

func TestToggleAllAndSelection(t *testing.T) {
	s := testSession(&fakeStore{}, invoiceText)
	ids := s.AddFiles([]internal.RawDocument{pdfDoc("a.pdf"), pdfDoc("b.pdf")})
	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	s.ToggleAll()
	if got := s.SelectedIDs(); len(got) != 2 {
		t.Fatalf("selected %v, want both", got)
	}
	s.ToggleAll()
	if got := s.SelectedIDs(); len(got) != 0 {
		t.Fatalf("second toggle must clear, got %v", got)
	}

	s.Select(ids[1], "no-such-id")
	got := s.SelectedIDs()
	if len(got) != 1 || got[0] != ids[1] {
		t.Fatalf("selected %v, want only %s", got, ids[1])
	}
}

func TestCommitCreatesRecords(t *testing.T) {
	store := &fakeStore{templates: []internal.Template{{ID: "default", Name: "Default Template"}}}
	s := testSession(store, invoiceText)

	ids := s.AddFiles([]internal.RawDocument{pdfDoc("jan.pdf"), pdfDoc("feb.pdf")})
	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	s.ToggleAll()

	batch, err := s.Commit(context.Background(), s.SelectedIDs())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Both files name the same new customer and item; nothing dedups across
	// files, so each entry materializes its own records.
	if len(batch.Customers) != 2 {
		t.Fatalf("customers: got %d, want 2", len(batch.Customers))
	}
	if len(batch.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(batch.Items))
	}
	if len(batch.Invoices) != 2 {
		t.Fatalf("invoices: got %d, want 2", len(batch.Invoices))
	}

	inv := batch.Invoices[0]
	if inv.InvoiceNumber != "INV-1001" {
		t.Fatalf("invoice number: got %q", inv.InvoiceNumber)
	}
	if inv.Status != internal.InvoiceDraft {
		t.Fatalf("status: got %s, want draft", inv.Status)
	}
	if inv.TemplateID != "default" {
		t.Fatalf("template: got %q", inv.TemplateID)
	}
	if inv.CustomerSnapshot.Name != "Acme Corp" || inv.CustomerID == "" {
		t.Fatalf("customer snapshot: %+v", inv.CustomerSnapshot)
	}
	if len(inv.IssueDate) != 10 || len(inv.DueDate) != 10 {
		t.Fatalf("missing dates must fall back to today: %q / %q", inv.IssueDate, inv.DueDate)
	}
	if len(inv.LineItems) != 1 || inv.LineItems[0].ItemID == nil {
		t.Fatalf("line items must be linked to catalog records: %+v", inv.LineItems)
	}

	if len(store.invoices) != 2 || len(store.customers) != 2 || len(store.items) != 2 {
		t.Fatalf("store not updated: %d/%d/%d", len(store.invoices), len(store.customers), len(store.items))
	}

	for _, id := range ids {
		entry, _ := s.Entry(id)
		if entry.Status != internal.ImportSuccess {
			t.Fatalf("entry %s: status %s, want success", id, entry.Status)
		}
	}
	if got := s.SelectedIDs(); len(got) != 0 {
		t.Fatalf("committed entries must be deselected, got %v", got)
	}
}

func TestCommitLinksExistingCatalog(t *testing.T) {
	store := &fakeStore{
		customers: []internal.Customer{{ID: "c1", Name: "Acme Corp", Email: "billing@acme.com"}},
		items:     []internal.Item{{ID: "i1", Name: "Consulting", UnitPrice: 500}},
	}
	s := testSession(store, invoiceText)

	s.AddFiles([]internal.RawDocument{pdfDoc("jan.pdf")})
	if err := s.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	s.ToggleAll()

	batch, err := s.Commit(context.Background(), s.SelectedIDs())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(batch.Customers) != 0 || len(batch.Items) != 0 {
		t.Fatalf("matched records must not be recreated: %d customers, %d items", len(batch.Customers), len(batch.Items))
	}
	if len(batch.Invoices) != 1 {
		t.Fatalf("invoices: got %d, want 1", len(batch.Invoices))
	}

	inv := batch.Invoices[0]
	if inv.CustomerID != "c1" {
		t.Fatalf("invoice must reference matched customer, got %q", inv.CustomerID)
	}
	if inv.LineItems[0].ItemID == nil || *inv.LineItems[0].ItemID != "i1" {
		t.Fatalf("line item must reference matched item: %+v", inv.LineItems[0])
	}
}

func TestCommitSkipsNonReadyEntries(t *testing.T) {
	s := testSession(&fakeStore{}, invoiceText)

	ids := s.AddFiles([]internal.RawDocument{pdfDoc("a.pdf")})

	// Entry is still pending.
	batch, err := s.Commit(context.Background(), ids)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(batch.Invoices) != 0 {
		t.Fatalf("pending entry must not commit, got %d invoices", len(batch.Invoices))
	}

	entry, _ := s.Entry(ids[0])
	if entry.Status != internal.ImportFailed {
		t.Fatalf("status %s, want failed", entry.Status)
	}
	if entry.Error == nil || *entry.Error != "entry is not ready for commit" {
		t.Fatalf("error: %v", entry.Error)
	}
}
