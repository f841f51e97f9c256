package productdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Register the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/krish7x/store-agent/internal/domain"
)

// Client executes read queries against the product database. Callers are
// expected to run Validate on the query text before Execute.
type Client struct {
	db *sql.DB
}

// New creates a Client over an existing database handle.
func New(db *sql.DB) (*Client, error) {
	if db == nil {
		return nil, errors.New("productdb: db must not be nil")
	}
	return &Client{db: db}, nil
}

// Open creates a Client from a PostgreSQL DSN.
func Open(dsn string) (*Client, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("productdb: dsn must not be empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("productdb: open database: %w", err)
	}
	return &Client{db: db}, nil
}

// Execute runs a single query on a dedicated connection. The connection is
// acquired per call and released on every return path.
func (c *Client) Execute(ctx context.Context, query string) ([]domain.Row, []string, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("productdb: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("productdb: execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("productdb: read columns: %w", err)
	}

	var out []domain.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, fmt.Errorf("productdb: scan row: %w", err)
		}
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			// lib/pq returns text columns as []byte.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("productdb: iterate rows: %w", err)
	}
	return out, columns, nil
}
