package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zeroinvoice/internal"
	"zeroinvoice/internal/config"
	"zeroinvoice/internal/extract"
	"zeroinvoice/internal/gemini"
	"zeroinvoice/internal/importer"
	"zeroinvoice/internal/parse"
	"zeroinvoice/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		files := fs.String("files", "", "comma-separated list of PDF paths")
		report := fs.String("report", "", "optional review-report xlsx path")
		dryRun := fs.Bool("dry-run", false, "process and report without committing")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*files) == "" {
			must(fmt.Errorf("--files is required"))
		}

		docs := readDocuments(cfg, strings.Split(*files, ","))
		runImport(cfg, db, docs, *report, *dryRun)
	case "customers:list":
		customers, err := db.ListCustomers()
		must(err)
		for _, c := range customers {
			fmt.Printf("%s  %s  <%s>\n", c.ID, c.Name, c.Email)
		}
		fmt.Printf("%d customers\n", len(customers))
	case "items:list":
		items, err := db.ListItems()
		must(err)
		for _, it := range items {
			fmt.Printf("%s  %s  $%.2f\n", it.ID, it.Name, it.UnitPrice)
		}
		fmt.Printf("%d items\n", len(items))
	case "invoices:list":
		invoices, err := db.ListInvoices()
		must(err)
		for _, inv := range invoices {
			fmt.Printf("%s  %s  %s  $%.2f  %s\n", inv.ID, inv.InvoiceNumber, inv.CustomerSnapshot.Name, inv.Total, inv.Status)
		}
		fmt.Printf("%d invoices\n", len(invoices))
	default:
		usage()
		os.Exit(1)
	}
}

func readDocuments(cfg config.Config, paths []string) []internal.RawDocument {
	softCap := int64(cfg.ImportSoftMaxFileMB) * 1024 * 1024
	docs := make([]internal.RawDocument, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		must(err)
		if softCap > 0 && int64(len(data)) > softCap {
			fmt.Printf("warning: %s exceeds %dMB, extraction may be slow\n", p, cfg.ImportSoftMaxFileMB)
		}
		docs = append(docs, internal.RawDocument{
			Name: filepath.Base(p),
			Size: int64(len(data)),
			Data: data,
		})
	}
	return docs
}

func runImport(cfg config.Config, db *storage.DB, docs []internal.RawDocument, report string, dryRun bool) {
	ctx := context.Background()

	session := importer.NewSession(cfg, db, extract.NewExtractor(), parse.NewParser(cfg, gemini.NewClient(cfg)))
	session.AddFiles(docs)
	must(session.Process(ctx))

	for _, entry := range session.Entries() {
		line := fmt.Sprintf("%-40s %-10s", entry.Filename, entry.Status)
		if entry.Extracted != nil {
			line += fmt.Sprintf(" confidence=%.2f", entry.Extracted.Confidence)
			if len(entry.Extracted.Warnings) > 0 {
				line += " warnings=" + strings.Join(entry.Extracted.Warnings, " | ")
			}
		}
		if entry.Error != nil {
			line += " error=" + *entry.Error
		}
		fmt.Println(line)
	}

	if !dryRun {
		session.ToggleAll()
		batch, err := session.Commit(ctx, session.SelectedIDs())
		must(err)
		fmt.Printf("committed invoices=%d customers=%d items=%d\n",
			len(batch.Invoices), len(batch.Customers), len(batch.Items))
	}

	stats := session.Stats()
	fmt.Printf("import done total=%d ready=%d success=%d failed=%d\n",
		stats.Total, stats.Ready, stats.Success, stats.Failed)

	if report == "" && dryRun {
		report = filepath.Join(cfg.OutputDir, "import-review.xlsx")
	}
	if report != "" {
		must(importer.ExportEntriesToXLSX(session.Entries(), report))
		fmt.Printf("review report written to %s\n", report)
	}
}

func usage() {
	fmt.Println("usage: zeroinvoice <command>")
	fmt.Println("commands:")
	fmt.Println("  import --files=a.pdf,b.pdf [--report=./out/review.xlsx] [--dry-run]")
	fmt.Println("  customers:list")
	fmt.Println("  items:list")
	fmt.Println("  invoices:list")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
