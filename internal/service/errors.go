package service

import "errors"

var (
	// ErrContentNotFound is returned when the content item does not exist.
	ErrContentNotFound = errors.New("content not found")
	// ErrVersionNotFound is returned when a version or version id does not exist.
	ErrVersionNotFound = errors.New("version not found")
	// ErrVersionMismatch is returned when a restore names a version that
	// belongs to a different content item.
	ErrVersionMismatch = errors.New("version does not belong to this content")
	// ErrVersionConflict is returned when concurrent writers kept racing on
	// the same version number after all retries.
	ErrVersionConflict = errors.New("version conflict, please retry")
	// ErrAlreadyArchived is returned when archiving archived content.
	ErrAlreadyArchived = errors.New("content is already archived")
	// ErrNotArchived is returned when unarchiving live content.
	ErrNotArchived = errors.New("content is not archived")
	// ErrTagNotAttached is returned when detaching a tag the content does not carry.
	ErrTagNotAttached = errors.New("tag is not attached to this content")
	// ErrInvalidContent is returned when a create request misses required fields.
	ErrInvalidContent = errors.New("title and contentType are required")
)
