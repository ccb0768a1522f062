package docsql

import "errors"

// ErrNotFound is returned when a read matches no row for the requested
// key. It is a benign miss, not a driver failure.
var ErrNotFound = errors.New("record not found")

// ErrUnexpectedState is returned when a statement executed without
// driver failure but affected an unexpected number of rows, such as an
// update or delete matching zero rows. It signals a logic or data
// problem rather than an infrastructure fault.
var ErrUnexpectedState = errors.New("unexpected affected row count")

// ErrNotInitialized is returned by operations invoked before Init.
var ErrNotInitialized = errors.New("client not initialized")

// ErrClosed is returned by operations invoked after Close.
var ErrClosed = errors.New("client is closed")
