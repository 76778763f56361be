package repo

import (
	"context"
	"fmt"

	"mockupstudio/internal/infra"
	"mockupstudio/internal/sqlinline"
)

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, sql infra.SQLExecutor) error {
	for i, stmt := range sqlinline.Schema {
		if _, err := sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
