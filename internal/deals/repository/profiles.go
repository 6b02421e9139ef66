package repository

import (
	"context"
	"fmt"
	"strings"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
)

const opProfileNames = "deals.repository.profile_names"

// GetProfileNames resolves display names for a batch of user ids in one
// query. Missing profiles are simply absent from the result map.
func (r *Repository) GetProfileNames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opProfileNames)
	}
	if len(userIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(first_name, ''), COALESCE(last_name, '')
		FROM profiles
		WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("get profile names failed: %v", err)).WithOp(opProfileNames)
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string, len(userIDs))
	for rows.Next() {
		var id uuid.UUID
		var first, last string
		if scanErr := rows.Scan(&id, &first, &last); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan profile name failed: %v", scanErr)).WithOp(opProfileNames)
		}
		name := strings.TrimSpace(first + " " + last)
		if name != "" {
			names[id] = name
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate profile names failed: %v", rowsErr)).WithOp(opProfileNames)
	}

	return names, nil
}
