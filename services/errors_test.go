package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsNotProvisionedSentinel(t *testing.T) {
	assert.True(t, IsNotProvisioned(ErrNotProvisioned))
	assert.True(t, IsNotProvisioned(fmt.Errorf("listing: %w", ErrNotProvisioned)))
}

func TestIsNotProvisionedCommandErrors(t *testing.T) {
	assert.True(t, IsNotProvisioned(mongo.CommandError{Code: 26, Message: "ns does not exist"}))
	assert.True(t, IsNotProvisioned(mongo.CommandError{Code: 73, Message: "invalid namespace"}))
	assert.False(t, IsNotProvisioned(mongo.CommandError{Code: 11000, Message: "duplicate key"}))
}

func TestIsNotProvisionedOtherErrors(t *testing.T) {
	assert.False(t, IsNotProvisioned(nil))
	assert.False(t, IsNotProvisioned(errors.New("connection reset")))
}

func TestClassifyStoreErr(t *testing.T) {
	assert.NoError(t, classifyStoreErr(nil))
	assert.ErrorIs(t, classifyStoreErr(mongo.CommandError{Code: 26}), ErrNotProvisioned)

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyStoreErr(plain))
}
