package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zeroinvoice/internal"
	"zeroinvoice/internal/config"
	"zeroinvoice/internal/extract"
	"zeroinvoice/internal/parse"
	"zeroinvoice/internal/util"
)

// Store is the domain-store contract the pipeline needs: read access to the
// current catalog and append access for committed batches. The handle is
// passed in, never pulled from a registry.
type Store interface {
	ListCustomers() ([]internal.Customer, error)
	ListItems() ([]internal.Item, error)
	ListTemplates() ([]internal.Template, error)
	AppendCustomers(customers []internal.Customer) error
	AppendItems(items []internal.Item) error
	AppendInvoices(invoices []internal.Invoice) error
}

// Session drives uploaded files through pending → processing → ready/failed
// and commits the user-selected subset as new domain records. Entries are
// mutated only here, always by replacing the whole slice, so a snapshot
// handed out earlier is never torn by a concurrent progress callback.
type Session struct {
	cfg       config.Config
	store     Store
	extractor *extract.Extractor
	parser    *parse.Parser

	mu       sync.Mutex
	entries  []internal.ImportEntry
	docs     map[string]internal.RawDocument
	selected map[string]struct{}
}

func NewSession(cfg config.Config, store Store, extractor *extract.Extractor, parser *parse.Parser) *Session {
	return &Session{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		parser:    parser,
		docs:      map[string]internal.RawDocument{},
		selected:  map[string]struct{}{},
	}
}

// AddFiles registers documents as pending entries and returns their ids.
func (s *Session) AddFiles(docs []internal.RawDocument) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(docs))
	next := append([]internal.ImportEntry{}, s.entries...)
	for _, doc := range docs {
		id := uuid.NewString()
		ids = append(ids, id)
		s.docs[id] = doc
		next = append(next, internal.ImportEntry{
			ID:       id,
			Filename: doc.Name,
			Size:     doc.Size,
			Status:   internal.ImportPending,
		})
	}
	s.entries = next
	return ids
}

// Entries returns a snapshot of the current entry collection.
func (s *Session) Entries() []internal.ImportEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.ImportEntry{}, s.entries...)
}

func (s *Session) Entry(id string) (internal.ImportEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return internal.ImportEntry{}, false
}

// Remove drops one entry. Removal is rejected while the entry is being
// processed; there is no cancellation token threaded through extraction.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID != id {
			continue
		}
		if e.Status == internal.ImportProcessing {
			return fmt.Errorf("entry %s is processing and cannot be removed", id)
		}
		next := append([]internal.ImportEntry{}, s.entries[:i]...)
		s.entries = append(next, s.entries[i+1:]...)
		delete(s.docs, id)
		delete(s.selected, id)
		return nil
	}
	return fmt.Errorf("no entry with id %s", id)
}

// RemoveFailed discards every failed entry without touching the rest.
func (s *Session) RemoveFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]internal.ImportEntry, 0, len(s.entries))
	removed := 0
	for _, e := range s.entries {
		if e.Status == internal.ImportFailed {
			delete(s.docs, e.ID)
			delete(s.selected, e.ID)
			removed++
			continue
		}
		next = append(next, e)
	}
	s.entries = next
	return removed
}

// Stats derives per-status counts from the entry collection.
func (s *Session) Stats() internal.ImportStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := internal.ImportStats{Total: len(s.entries)}
	for _, e := range s.entries {
		switch e.Status {
		case internal.ImportPending:
			stats.Pending++
		case internal.ImportProcessing:
			stats.Processing++
		case internal.ImportReady:
			stats.Ready++
		case internal.ImportSuccess:
			stats.Success++
		case internal.ImportFailed:
			stats.Failed++
		}
	}
	return stats
}

// Select marks ready entries for commit; unknown or non-ready ids are
// ignored. Unselected ready entries stay ready and can be revisited.
func (s *Session) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for _, e := range s.entries {
			if e.ID == id && e.Status == internal.ImportReady {
				s.selected[id] = struct{}{}
			}
		}
	}
}

// ToggleAll selects every ready entry, or clears the selection if all of
// them are already selected.
func (s *Session) ToggleAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ready := 0
	for _, e := range s.entries {
		if e.Status == internal.ImportReady {
			ready++
		}
	}
	if ready > 0 && len(s.selected) == ready {
		s.selected = map[string]struct{}{}
		return
	}
	for _, e := range s.entries {
		if e.Status == internal.ImportReady {
			s.selected[e.ID] = struct{}{}
		}
	}
}

// SelectedIDs returns the selected ids in entry order.
func (s *Session) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.selected))
	for _, e := range s.entries {
		if _, ok := s.selected[e.ID]; ok {
			out = append(out, e.ID)
		}
	}
	return out
}

// Process drives every pending entry through extraction and parsing.
// Extraction progress maps onto the first half of the progress bar; the
// second half completes with parsing. Entries whose parse produced blocking
// validation errors go to failed, not ready, so they can never be committed
// with silently defaulted fields.
func (s *Session) Process(ctx context.Context) error {
	s.mu.Lock()
	batch := make([]internal.RawDocument, 0)
	for i := range s.entries {
		if s.entries[i].Status != internal.ImportPending {
			continue
		}
		id := s.entries[i].ID
		doc, ok := s.docs[id]
		if !ok {
			continue
		}
		// Extraction results are keyed by entry id, not filename, so two
		// uploads sharing a name keep separate progress and results.
		batch = append(batch, internal.RawDocument{Name: id, Size: doc.Size, Data: doc.Data})
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	valid := make([]internal.RawDocument, 0, len(batch))
	for _, doc := range batch {
		entry, _ := s.Entry(doc.Name)
		s.update(doc.Name, func(e *internal.ImportEntry) {
			e.Status = internal.ImportProcessing
			e.Progress = 0
		})
		if !s.extractor.Validate(internal.RawDocument{Name: entry.Filename, Size: doc.Size, Data: doc.Data}) {
			s.fail(doc.Name, "Invalid PDF file")
			continue
		}
		valid = append(valid, doc)
	}

	results, failures := s.extractor.ExtractMany(valid, func(id string, pct int) {
		s.update(id, func(e *internal.ImportEntry) {
			if p := pct / 2; p > e.Progress {
				e.Progress = p
			}
		})
	}, s.cfg.ImportMaxConcurrent)

	var items []internal.Item
	customers, err := s.store.ListCustomers()
	if err == nil {
		items, err = s.store.ListItems()
	}
	if err != nil {
		// Entries must never be left stranded at processing: a dead store
		// fails the whole batch so every entry can still be discarded.
		for _, doc := range valid {
			s.fail(doc.Name, fmt.Sprintf("failed to load catalog: %v", err))
		}
		s.mu.Lock()
		for _, doc := range batch {
			delete(s.docs, doc.Name)
		}
		s.mu.Unlock()
		return err
	}

	for _, doc := range valid {
		id := doc.Name
		if err, ok := failures[id]; ok {
			s.fail(id, err.Error())
			continue
		}
		res, ok := results[id]
		if !ok {
			s.fail(id, "extraction produced no result")
			continue
		}

		extracted := s.parser.Parse(ctx, res.Text, customers, items)
		if len(extracted.Errors) > 0 {
			s.update(id, func(e *internal.ImportEntry) {
				e.Status = internal.ImportFailed
				e.Extracted = &extracted
				e.Error = util.StringPtr(strings.Join(extracted.Errors, "; "))
			})
			continue
		}

		s.update(id, func(e *internal.ImportEntry) {
			e.Status = internal.ImportReady
			e.Progress = 100
			e.Extracted = &extracted
			e.Error = nil
		})
	}

	// Raw payloads are only needed for extraction.
	s.mu.Lock()
	for _, doc := range batch {
		delete(s.docs, doc.Name)
	}
	s.mu.Unlock()

	return nil
}

// Commit materializes the selected ready entries into one batch of new
// customers, items, and invoices, then appends the batch to the store as
// three operations. A malformed entry fails alone; entries already
// converted in the same call are not rolled back. New customers and items
// are captured once per entry — the same new customer appearing in two
// files yields two records, cross-file dedup being left to a later edit.
func (s *Session) Commit(ctx context.Context, ids []string) (internal.CommitBatch, error) {
	customers, err := s.store.ListCustomers()
	if err != nil {
		return internal.CommitBatch{}, err
	}
	items, err := s.store.ListItems()
	if err != nil {
		return internal.CommitBatch{}, err
	}
	templates, err := s.store.ListTemplates()
	if err != nil {
		return internal.CommitBatch{}, err
	}

	customersByID := make(map[string]internal.Customer, len(customers))
	for _, c := range customers {
		customersByID[c.ID] = c
	}
	itemsByID := make(map[string]internal.Item, len(items))
	for _, it := range items {
		itemsByID[it.ID] = it
	}
	templateID := "default"
	if len(templates) > 0 {
		templateID = templates[0].ID
	}

	var batch internal.CommitBatch
	now := time.Now().UTC().Format(time.RFC3339)
	today := time.Now().Format("2006-01-02")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		entry, ok := s.Entry(id)
		if !ok {
			continue
		}
		if entry.Status != internal.ImportReady || entry.Extracted == nil {
			s.fail(id, "entry is not ready for commit")
			continue
		}
		ext := entry.Extracted

		snapshot, created, err := s.resolveCustomer(ext, customersByID, now)
		if err != nil {
			s.fail(id, err.Error())
			continue
		}
		if created {
			batch.Customers = append(batch.Customers, snapshot)
		}

		lineItems := make([]internal.LineItem, len(ext.Invoice.LineItems))
		copy(lineItems, ext.Invoice.LineItems)
		for i := range lineItems {
			decision := ext.ItemMatches[lineItems[i].ID]
			if decision.ExistingID != nil {
				if catalogItem, ok := itemsByID[*decision.ExistingID]; ok {
					lineItems[i].ItemID = util.StringPtr(catalogItem.ID)
					continue
				}
			}
			newItem := internal.Item{
				ID:          uuid.NewString(),
				Name:        lineItems[i].Name,
				Description: lineItems[i].Description,
				UnitPrice:   lineItems[i].UnitPrice,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			batch.Items = append(batch.Items, newItem)
			lineItems[i].ItemID = util.StringPtr(newItem.ID)
		}

		invoice := internal.Invoice{
			ID:               uuid.NewString(),
			InvoiceNumber:    ext.Invoice.InvoiceNumber,
			CustomerID:       snapshot.ID,
			CustomerSnapshot: snapshot,
			LineItems:        lineItems,
			Subtotal:         ext.Invoice.Subtotal,
			Tax:              ext.Invoice.Tax,
			TaxRate:          ext.Invoice.TaxRate,
			Total:            ext.Invoice.Total,
			Status:           internal.InvoiceDraft,
			TemplateID:       templateID,
			IssueDate:        ext.Invoice.IssueDate,
			DueDate:          ext.Invoice.DueDate,
			Notes:            ext.Invoice.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if invoice.InvoiceNumber == "" {
			invoice.InvoiceNumber = fmt.Sprintf("INV-%d", time.Now().UnixMilli())
		}
		if invoice.IssueDate == "" {
			invoice.IssueDate = today
		}
		if invoice.DueDate == "" {
			invoice.DueDate = today
		}
		batch.Invoices = append(batch.Invoices, invoice)

		s.update(id, func(e *internal.ImportEntry) {
			e.Status = internal.ImportSuccess
		})
		s.mu.Lock()
		delete(s.selected, id)
		s.mu.Unlock()
	}

	if len(batch.Customers) > 0 {
		if err := s.store.AppendCustomers(batch.Customers); err != nil {
			return batch, err
		}
	}
	if len(batch.Items) > 0 {
		if err := s.store.AppendItems(batch.Items); err != nil {
			return batch, err
		}
	}
	if len(batch.Invoices) > 0 {
		if err := s.store.AppendInvoices(batch.Invoices); err != nil {
			return batch, err
		}
	}

	return batch, nil
}

// resolveCustomer turns the entry's customer decision into either the
// matched existing record or a freshly materialized one.
func (s *Session) resolveCustomer(ext *internal.ExtractedInvoice, customersByID map[string]internal.Customer, now string) (internal.Customer, bool, error) {
	if ext.CustomerMatch.ExistingID != nil {
		if existing, ok := customersByID[*ext.CustomerMatch.ExistingID]; ok {
			return existing, false, nil
		}
	}

	if ext.Parsed.CustomerName == nil {
		return internal.Customer{}, false, fmt.Errorf("cannot create a customer without a name")
	}

	customer := internal.Customer{
		ID:        uuid.NewString(),
		Name:      *ext.Parsed.CustomerName,
		Email:     util.DerefString(ext.Parsed.CustomerEmail),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ext.Parsed.CustomerAddress != nil {
		customer.Address = *ext.Parsed.CustomerAddress
	}
	return customer, true, nil
}

func (s *Session) fail(id, message string) {
	s.update(id, func(e *internal.ImportEntry) {
		e.Status = internal.ImportFailed
		e.Error = util.StringPtr(message)
	})
}

// update applies fn to one entry on a fresh copy of the collection.
func (s *Session) update(id string, fn func(*internal.ImportEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]internal.ImportEntry, len(s.entries))
	copy(next, s.entries)
	for i := range next {
		if next[i].ID == id {
			fn(&next[i])
			break
		}
	}
	s.entries = next
}
