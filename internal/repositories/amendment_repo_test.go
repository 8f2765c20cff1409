package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapAmendmentInsertErr(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "uq_amendments_one_pending"}
	require.ErrorIs(t, mapAmendmentInsertErr(unique), ErrPendingExists)
	require.ErrorIs(t, mapAmendmentInsertErr(fmt.Errorf("insert amendment: %w", unique)), ErrPendingExists)

	other := &pgconn.PgError{Code: "23503"}
	require.NotErrorIs(t, mapAmendmentInsertErr(other), ErrPendingExists)
	require.NotErrorIs(t, mapAmendmentInsertErr(errors.New("connection reset")), ErrPendingExists)
	require.NoError(t, mapAmendmentInsertErr(nil))
}
