// internal/app/system/txn/txn.go

// Package txn classifies MongoDB errors that mean multi-document
// transactions are unavailable (standalone server, no replica set).
// Callers fall back to compensating writes when this trips.
package txn

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes that indicate transactions cannot be used here.
//
//	20  IllegalOperation (often "Transaction numbers are only allowed on
//	    a replica set member or mongos")
//	51  IllegalOperation variants
//	263 OperationNotSupportedInTransaction
var unsupportedCodes = map[int32]bool{
	20:  true,
	51:  true,
	263: true,
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions. It checks known command error codes first,
// then falls back to keyword matching for driver-wrapped errors.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && unsupportedCodes[ce.Code] {
		return true
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "illegal operation"):
		return true
	case strings.Contains(s, "transaction") && strings.Contains(s, "replica set"):
		return true
	case strings.Contains(s, "transaction") && strings.Contains(s, "session"):
		return true
	case strings.Contains(s, "session") && strings.Contains(s, "not supported"):
		return true
	}
	return false
}
