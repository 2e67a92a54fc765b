package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return pgx.ErrTxClosed
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	opts     pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	beginner := &fakeBeginner{tx: &fakeTx{}}

	err := WithTx(context.Background(), beginner, func(pgx.Tx) error { return nil })
	require.NoError(t, err)

	assert.True(t, beginner.tx.committed)
	assert.False(t, beginner.tx.rolledBack)
	assert.Equal(t, pgx.RepeatableRead, beginner.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	beginner := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")

	err := WithTx(context.Background(), beginner, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.False(t, beginner.tx.committed)
	assert.True(t, beginner.tx.rolledBack)
}

func TestWithTxBeginFailure(t *testing.T) {
	beginner := &fakeBeginner{beginErr: errors.New("pool exhausted")}

	err := WithTx(context.Background(), beginner, func(pgx.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}
