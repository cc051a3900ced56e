package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsConflict(t *testing.T) {
	conflict := &ConflictError{Entity: "assignment", Field: "user_id, guild_id", Value: int64(1001)}

	assert.True(t, IsConflict(conflict))
	assert.True(t, IsConflict(fmt.Errorf("insert assignment: %w", conflict)))

	assert.False(t, IsConflict(errors.New("connection reset")))
	assert.False(t, IsConflict(&NotFoundError{Entity: "quest", ID: 7}))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505"}

	assert.True(t, IsUniqueViolation(pgErr))
	assert.True(t, IsUniqueViolation(fmt.Errorf("exec: %w", pgErr)))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_uqa_one_active" (SQLSTATE 23505)`)))

	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
}

func TestRepositoryError_Unwrap(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := &RepositoryError{Operation: "add", Entity: "xp ledger", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "xp ledger")
}
