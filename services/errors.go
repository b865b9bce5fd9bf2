package services

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotProvisioned reports that the backing store has not been initialized
// for the collection a call touched. Handlers degrade to empty or simulated
// responses on it instead of failing the caller.
var ErrNotProvisioned = errors.New("store not provisioned")

// Mongo server error codes that mean the namespace a query touched does not
// exist yet.
const (
	codeNamespaceNotFound = 26
	codeInvalidNamespace  = 73
)

// classifyStoreErr maps driver errors onto the store's error taxonomy.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if IsNotProvisioned(err) {
		return ErrNotProvisioned
	}
	return err
}

// IsNotProvisioned reports whether err indicates a missing collection,
// database, or index rather than a genuine failure.
func IsNotProvisioned(err error) bool {
	if errors.Is(err, ErrNotProvisioned) {
		return true
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case codeNamespaceNotFound, codeInvalidNamespace:
			return true
		}
	}
	return false
}
