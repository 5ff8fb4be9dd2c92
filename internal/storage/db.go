package storage

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"zeroinvoice/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  address_json TEXT NOT NULL DEFAULT '{}',
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name);
CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email);

CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  unitPrice REAL NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  invoiceNumber TEXT NOT NULL,
  customerId TEXT NOT NULL,
  customerSnapshot_json TEXT NOT NULL,
  lineItems_json TEXT NOT NULL,
  subtotal REAL NOT NULL DEFAULT 0,
  tax REAL NOT NULL DEFAULT 0,
  taxRate REAL NOT NULL DEFAULT 0,
  total REAL NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'draft',
  templateId TEXT NOT NULL DEFAULT 'default',
  issueDate TEXT NOT NULL DEFAULT '',
  dueDate TEXT NOT NULL DEFAULT '',
  notes TEXT,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_customerId ON invoices(customerId);
CREATE INDEX IF NOT EXISTS idx_invoices_invoiceNumber ON invoices(invoiceNumber);

CREATE TABLE IF NOT EXISTS templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL
);
INSERT OR IGNORE INTO templates (id, name) VALUES ('default', 'Default Template');
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) ListCustomers() ([]internal.Customer, error) {
	rows, err := d.conn.Query(`SELECT id, name, email, address_json, createdAt, updatedAt FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Customer
	for rows.Next() {
		var c internal.Customer
		var addressJSON string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &addressJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(addressJSON), &c.Address)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) ListItems() ([]internal.Item, error) {
	rows, err := d.conn.Query(`SELECT id, name, description, unitPrice, createdAt, updatedAt FROM items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Item
	for rows.Next() {
		var it internal.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.UnitPrice, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (d *DB) ListInvoices() ([]internal.Invoice, error) {
	rows, err := d.conn.Query(`
SELECT id, invoiceNumber, customerId, customerSnapshot_json, lineItems_json,
       subtotal, tax, taxRate, total, status, templateId, issueDate, dueDate, notes,
       createdAt, updatedAt
FROM invoices ORDER BY createdAt`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Invoice
	for rows.Next() {
		var inv internal.Invoice
		var snapshotJSON, lineItemsJSON string
		var status string
		if err := rows.Scan(
			&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &snapshotJSON, &lineItemsJSON,
			&inv.Subtotal, &inv.Tax, &inv.TaxRate, &inv.Total, &status, &inv.TemplateID,
			&inv.IssueDate, &inv.DueDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		inv.Status = internal.InvoiceStatus(status)
		_ = json.Unmarshal([]byte(snapshotJSON), &inv.CustomerSnapshot)
		_ = json.Unmarshal([]byte(lineItemsJSON), &inv.LineItems)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (d *DB) ListTemplates() ([]internal.Template, error) {
	rows, err := d.conn.Query(`SELECT id, name FROM templates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Template
	for rows.Next() {
		var t internal.Template
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) AppendCustomers(customers []internal.Customer) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO customers (id, name, email, address_json, createdAt, updatedAt) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range customers {
		addressJSON, _ := json.Marshal(c.Address)
		if _, err := stmt.Exec(c.ID, c.Name, c.Email, string(addressJSON), c.CreatedAt, c.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) AppendItems(items []internal.Item) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO items (id, name, description, unitPrice, createdAt, updatedAt) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.Exec(it.ID, it.Name, it.Description, it.UnitPrice, it.CreatedAt, it.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) AppendInvoices(invoices []internal.Invoice) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO invoices (
  id, invoiceNumber, customerId, customerSnapshot_json, lineItems_json,
  subtotal, tax, taxRate, total, status, templateId, issueDate, dueDate, notes,
  createdAt, updatedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inv := range invoices {
		snapshotJSON, _ := json.Marshal(inv.CustomerSnapshot)
		lineItemsJSON, _ := json.Marshal(inv.LineItems)
		if _, err := stmt.Exec(
			inv.ID, inv.InvoiceNumber, inv.CustomerID, string(snapshotJSON), string(lineItemsJSON),
			inv.Subtotal, inv.Tax, inv.TaxRate, inv.Total, string(inv.Status), inv.TemplateID,
			inv.IssueDate, inv.DueDate, inv.Notes, inv.CreatedAt, inv.UpdatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
