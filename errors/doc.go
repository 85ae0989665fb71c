// Package errors provides standardized error handling patterns for kvgate.
//
// # Overview
//
// Errors fall into three classes: Transient (backend failures such as timeouts,
// throttling or lost connections), Invalid (bad input, never retried) and Fatal
// (missing configuration, unsupported methods, corrupted data).
//
// Handlers use the class to decide what the client sees:
//
//   - Invalid on a write: HTTP 400 with the literal body "Invalid payload"
//   - ErrKeyNotFound or any backend failure on a read: HTTP 404
//   - Backend failure on a write, or any Fatal error: the invocation fails
//     and no application body is produced
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// For example:
//
//	return errors.WrapTransient(err, "SQLStore", "Get", "select record")
//
// The classified wrappers preserve the chain, so errors.Is still matches the
// sentinels:
//
//	err := errors.WrapTransient(errors.ErrKeyNotFound, "KVStore", "Get", "lookup")
//	errors.IsNotFound(err) // true
//	errors.IsTransient(err) // true
//
// # Standard Errors
//
// Storage:
//   - ErrKeyNotFound: the requested key does not exist
//   - ErrStorageUnavailable: the backend cannot be reached
//   - ErrBucketNotFound: the table or bucket does not exist
//
// Input:
//   - ErrInvalidData: the request body failed validation
//   - ErrParsingFailed: the request body could not be parsed
//
// Configuration:
//   - ErrMissingConfig: a required setting (the table name) is absent
//   - ErrInvalidConfig: a setting is present but malformed
//   - ErrUnsupportedMethod: the router received a method outside GET and POST
package errors
