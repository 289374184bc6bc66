package main

import (
	"github.com/gofrs/uuid"
)

var _ UIDGenerator = (*IDsHandler)(nil) // ensure IDsHandler implements UIDGenerator.

// UIDGenerator is an interface for getting a uid.
type UIDGenerator interface {
	Generate(prefix string) string
}

// IDsHandler implements the UIDGenerator interface.
type IDsHandler struct{}

// NewIDsHandler returns a ready to use IDsHandler.
func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a random unique identifier. Books
// and requests ids are prefixed to tell them apart in logs.
func (idh *IDsHandler) Generate(prefix string) string {
	id, _ := uuid.NewV4()
	if prefix == "" {
		return id.String()
	}
	return prefix + ":" + id.String()
}
