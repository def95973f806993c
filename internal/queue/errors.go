package queue

import "errors"

var (
	// ErrNotFound is returned when a request id has never been assigned,
	// i.e. id >= tail.
	ErrNotFound = errors.New("queue: request not found")

	// ErrWrongStatus is returned when a withdrawal transition is attempted
	// from a status that does not permit it.
	ErrWrongStatus = errors.New("queue: wrong request status for transition")

	// ErrAlreadyProcessed is returned when marking a deposit processed twice.
	ErrAlreadyProcessed = errors.New("queue: deposit already processed")
)
