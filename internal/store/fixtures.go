package store

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartflow/internal/ir"
)

// Fixtures maps table names to rows to seed.
type Fixtures map[string][]map[string]any

// LoadFixtures reads a YAML fixtures file.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	f, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseFixtures decodes YAML fixtures, rejecting unknown tables.
//
//	product:
//	  - {product_id: 1, sku: TEE, name: Tee, price: 1000}
//	cart:
//	  - {cart_id: 1}
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	known := make(map[string]bool, len(TableNames))
	for _, name := range TableNames {
		known[name] = true
	}
	for table := range f {
		if !known[table] {
			return nil, fmt.Errorf("parse fixtures: %q: %w", table, ErrUnknownTable)
		}
	}
	return f, nil
}

// Seed inserts fixtures in one transaction, in foreign-key order. Unknown
// columns fail the whole seed.
func (s *Store) Seed(ctx context.Context, f Fixtures) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, table := range TableNames {
		for i, raw := range f[table] {
			v, err := ir.FromGo(raw)
			if err != nil {
				return fmt.Errorf("seed %s[%d]: %w", table, i, err)
			}
			if _, err := tx.insert(ctx, table, v.(ir.IRObject), true); err != nil {
				return fmt.Errorf("seed %s[%d]: %w", table, i, err)
			}
		}
	}
	return tx.Commit()
}
