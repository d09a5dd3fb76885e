package services

import (
	"errors"
	"fmt"
)

// ErrConflict is returned by EntryStore.Insert when (subscription, guid hash)
// already exists. Sync treats it as "already synced".
var ErrConflict = errors.New("entry already exists")

// ErrNotFound is returned when a subscription or entry does not exist
var ErrNotFound = errors.New("not found")

// ErrNoLink is returned when no permalink can be resolved for an entry
var ErrNoLink = errors.New("no link found")

// FetchError is a network or HTTP failure while fetching a feed document
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s (after %d attempt(s))", e.URL, e.StatusCode, e.Message, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %s (after %d attempt(s))", e.URL, e.Message, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError means the document is not a recognizable RSS or Atom feed
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse feed: %s: %v", e.Reason, e.Err)
	}
	return "parse feed: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ItemExtractionError is a failure to extract one item. It is logged and the
// item skipped, never returned from Parse.
type ItemExtractionError struct {
	Index int
	Err   error
}

func (e *ItemExtractionError) Error() string {
	return fmt.Sprintf("extract item %d: %v", e.Index, e.Err)
}

func (e *ItemExtractionError) Unwrap() error {
	return e.Err
}
