package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput indicates a message was rejected before extraction ran.
	ErrMalformedInput = errors.New("malformed input")

	// ErrAIUnavailable indicates the LLM chain produced no reply.
	ErrAIUnavailable = errors.New("ai unavailable")

	// ErrAITimeout indicates the LLM call was cancelled by its deadline.
	// It also matches ErrAIUnavailable.
	ErrAITimeout = fmt.Errorf("ai request timed out: %w", ErrAIUnavailable)

	// ErrPersistenceUnavailable indicates the memory store could not be read or written.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrNotFound indicates a conversation key has no stored memory.
	ErrNotFound = errors.New("not found")

	// ErrBriefingIncomplete indicates an operation needs a complete briefing.
	ErrBriefingIncomplete = errors.New("briefing incomplete")
)
