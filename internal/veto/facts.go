// AngelaMos | 2026
// facts.go

package veto

import (
	"context"
	"fmt"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

// SQLFactGateway satisfies FactGateway against the facts table owned by the
// facts subsystem. The engine only ever checks existence and pushes the
// resolution status; everything else about facts stays out of scope.
type SQLFactGateway struct {
	db core.DBTX
}

func NewSQLFactGateway(db core.DBTX) *SQLFactGateway {
	return &SQLFactGateway{db: db}
}

func (g *SQLFactGateway) Exists(
	ctx context.Context,
	factID string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM facts WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := g.db.GetContext(ctx, &exists, query, factID); err != nil {
		return false, fmt.Errorf("check fact exists: %w", err)
	}

	return exists, nil
}

func (g *SQLFactGateway) SetStatus(
	ctx context.Context,
	factID, status string,
) error {
	query := `
		UPDATE facts
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := g.db.ExecContext(ctx, query, factID, status)
	if err != nil {
		return fmt.Errorf("set fact status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set fact status: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set fact status: %w", core.ErrNotFound)
	}

	return nil
}

var _ FactGateway = (*SQLFactGateway)(nil)
