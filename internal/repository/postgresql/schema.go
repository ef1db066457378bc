package postgresql

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/tutorias/attendance-desk/internal/pkg/database"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the attendance tables when they do not exist.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
