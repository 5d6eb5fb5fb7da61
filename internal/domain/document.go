package domain

import (
	"fmt"
	"time"
)

// KeyPrefix namespaces all Redis keys owned by docchat.
const KeyPrefix = "docchat:"

// Status is the document ingestion lifecycle state.
type Status string

const (
	// StatusPending is set when an upload has been announced but bytes are not durable yet.
	StatusPending Status = "pending"
	// StatusUploaded is set once raw bytes are durably stored and a record exists.
	StatusUploaded Status = "uploaded"
	// StatusProcessing is set when the ingestion pipeline picks the document up.
	StatusProcessing Status = "processing"
	// StatusDone is set after all vectors are stored.
	StatusDone Status = "done"
	// StatusFailed is set when any pipeline step fails.
	StatusFailed Status = "failed"
)

// transitions holds the allowed lifecycle edges.
// done -> processing permits an explicit re-ingest; failed -> processing permits a retry.
var transitions = map[Status][]Status{
	StatusPending:    {StatusUploaded},
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusDone, StatusFailed},
	StatusDone:       {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge s -> next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Document is the metadata record of an uploaded file.
// Created at upload; only the ingestion pipeline mutates Status and Error.
type Document struct {
	ID          string
	FileName    string
	StoragePath string
	Status      Status
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument validates and creates a document record in the uploaded state.
func NewDocument(id, fileName, storagePath string, now time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if fileName == "" {
		return Document{}, fmt.Errorf("file name is required")
	}
	if storagePath == "" {
		return Document{}, fmt.Errorf("storage path is required")
	}
	return Document{
		ID:          id,
		FileName:    fileName,
		StoragePath: storagePath,
		Status:      StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
