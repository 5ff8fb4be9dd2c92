package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	pdf "github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"zeroinvoice/internal"
)

// ExtractFunc converts one document into text plus page metadata, reporting
// per-page progress in percent.
type ExtractFunc func(doc internal.RawDocument, onProgress func(int)) (internal.ExtractionResult, error)

// Extractor turns binary PDFs into plain text. ExtractOne is a field so
// tests can substitute the page reader; NewExtractor wires the real one.
type Extractor struct {
	ExtractOne ExtractFunc
}

func NewExtractor() *Extractor {
	return &Extractor{ExtractOne: extractPDF}
}

// Extract runs the configured single-document extraction.
func (e *Extractor) Extract(doc internal.RawDocument, onProgress func(int)) (internal.ExtractionResult, error) {
	return e.ExtractOne(doc, onProgress)
}

// ExtractMany processes docs in fixed batches of maxConcurrent: a batch runs
// fully in parallel and completes (success or failure for every file in it)
// before the next batch starts. Per-file failures land in the error map and
// never abort sibling files.
func (e *Extractor) ExtractMany(docs []internal.RawDocument, onFileProgress func(name string, pct int), maxConcurrent int) (map[string]internal.ExtractionResult, map[string]error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	results := make(map[string]internal.ExtractionResult, len(docs))
	failures := map[string]error{}
	var mu sync.Mutex

	for start := 0; start < len(docs); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(docs) {
			end = len(docs)
		}

		var g errgroup.Group
		for _, doc := range docs[start:end] {
			g.Go(func() error {
				res, err := e.Extract(doc, func(pct int) {
					if onFileProgress != nil {
						onFileProgress(doc.Name, pct)
					}
				})

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures[doc.Name] = err
				} else {
					results[doc.Name] = res
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return results, failures
}

// Validate is a cheap sanity check before extraction is attempted: the file
// must both claim to be a PDF and start with the %PDF- magic header.
func (e *Extractor) Validate(doc internal.RawDocument) bool {
	if !strings.HasSuffix(strings.ToLower(doc.Name), ".pdf") {
		return false
	}
	return bytes.HasPrefix(doc.Data, []byte("%PDF-"))
}

func extractPDF(doc internal.RawDocument, onProgress func(int)) (internal.ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return internal.ExtractionResult{}, fmt.Errorf("failed to read PDF: %w", err)
	}

	total := reader.NumPage()
	if total < 1 {
		return internal.ExtractionResult{}, fmt.Errorf("PDF has no pages")
	}

	parts := make([]string, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if !page.V.IsNull() {
			text, err := page.GetPlainText(nil)
			if err == nil {
				parts = append(parts, text)
			} else {
				// A page without an extractable text layer contributes
				// nothing; it is not an extraction failure.
				parts = append(parts, "")
			}
		} else {
			parts = append(parts, "")
		}

		if onProgress != nil {
			onProgress(int(math.Round(float64(pageNum) / float64(total) * 100)))
		}
	}

	return internal.ExtractionResult{
		Text:      strings.Join(parts, "\n\n"),
		PageCount: total,
		Metadata:  extractMetadata(doc.Name, reader),
	}, nil
}

// extractMetadata is best-effort: the trailer Info dictionary is frequently
// absent or malformed, and the pdf library panics on some malformed values,
// so failure here never fails the extraction.
func extractMetadata(name string, reader *pdf.Reader) (meta internal.PDFMetadata) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf metadata extraction failed", "file", name, "reason", fmt.Sprint(r))
			meta = internal.PDFMetadata{}
		}
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return internal.PDFMetadata{}
	}

	meta.Title = info.Key("Title").Text()
	meta.Author = info.Key("Author").Text()
	meta.Subject = info.Key("Subject").Text()
	meta.Creator = info.Key("Creator").Text()
	meta.Producer = info.Key("Producer").Text()
	meta.CreationDate = info.Key("CreationDate").Text()
	return meta
}
