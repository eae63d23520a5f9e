package service

import "errors"

var (
	// ErrInvalidArgument is returned when update/delete get an empty id.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is raised by callers after FindByID returns nil.
	ErrNotFound = errors.New("not found")
	// ErrCyclicHierarchy is returned when a parent chain loops back on itself.
	ErrCyclicHierarchy = errors.New("cyclic location hierarchy")
	// ErrMaxDepthExceeded is returned when a tree is deeper than the configured bound.
	ErrMaxDepthExceeded = errors.New("location hierarchy exceeds maximum depth")
)
