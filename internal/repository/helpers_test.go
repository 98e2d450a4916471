package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleNotFound(t *testing.T) {
	value := 42

	got, err := HandleNotFound(&value, nil)
	require.NoError(t, err)
	assert.Equal(t, &value, got)

	got, err = HandleNotFound(&value, sql.ErrNoRows)
	require.NoError(t, err)
	assert.Nil(t, got)

	boom := errors.New("connection reset")
	got, err = HandleNotFound(&value, boom)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: acceptedSessionDeviceKey}

	assert.True(t, isUniqueViolation(dup, acceptedSessionDeviceKey))
	assert.True(t, isUniqueViolation(dup, ""))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup), acceptedSessionDeviceKey))
	assert.False(t, isUniqueViolation(dup, "owners_email_key"))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(errors.New("23505"), ""))
	assert.False(t, isUniqueViolation(nil, ""))
}
