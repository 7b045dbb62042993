package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: "E11000 duplicate key error",
	}}}
}

func TestWithRetries_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return nil
	}, 3, IsMongoDuplicateKeyError)

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_NonDuplicateKeyReturnsImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("connection reset")
	err := WithRetries(func() error {
		calls++
		return wantErr
	}, 3, IsMongoDuplicateKeyError)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_RetriesDuplicateKeyUntilSuccess(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		if calls < 3 {
			return duplicateKeyError()
		}
		return nil
	}, 3, IsMongoDuplicateKeyError)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetries_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return duplicateKeyError()
	}, 2, IsMongoDuplicateKeyError)

	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
	assert.True(t, IsMongoDuplicateKeyError(err))
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.True(t, IsMongoDuplicateKeyError(duplicateKeyError()))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("other")))
	assert.False(t, IsMongoDuplicateKeyError(mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 121}},
	}))
}
