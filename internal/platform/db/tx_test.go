package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_accounts_company_code"})
	assert.True(t, IsUniqueViolation(err, "uq_accounts_company_code"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "ledger_postings_pkey"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}, ""))
}

func TestWithTxRequiresPool(t *testing.T) {
	err := WithTx(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestBackoffGrows(t *testing.T) {
	assert.Less(t, backoff(0), backoff(1))
	assert.Less(t, backoff(1), backoff(2))
}
