package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeConn struct {
	tx  *fakeTx
	err error
}

func (c fakeConn) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	tx := &fakeTx{}
	require.NoError(t, WithTx(context.Background(), fakeConn{tx: tx}, func(pgx.Tx) error { return nil }))
	require.True(t, tx.committed)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), fakeConn{tx: tx}, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestWithTxBeginFailure(t *testing.T) {
	err := WithTx(context.Background(), fakeConn{err: errors.New("pool closed")}, func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorContains(t, err, "begin tx")
}
