package storage

import "errors"

// ErrNotFound is returned when a requested operation does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicate is returned when an op_id collides with an existing row.
// Allocation is transactional, so seeing it means the counters were tampered with.
var ErrDuplicate = errors.New("storage: duplicate op_id")
