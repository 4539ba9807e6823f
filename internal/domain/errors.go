package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmptyName       = errors.New("list name is empty")
	ErrInvalidListName = errors.New("list name must be HH:MM")
	ErrDuplicateList   = errors.New("list already exists")
	ErrDefaultList     = errors.New("default list cannot be removed")
	ErrListNotFound    = errors.New("list not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrDuplicateItem   = errors.New("item already in list")

	// ErrNotSaved marks a change that was applied in memory but could not be
	// written to durable storage. The next successful save includes it.
	ErrNotSaved = errors.New("change not saved")
)
