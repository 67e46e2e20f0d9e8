package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Diagnostic codes attached to runs that end in the failed state.
const (
	RunErrorLoadFailed       = "LOAD_FAILED"
	RunErrorClusteringFailed = "CLUSTERING_FAILED"
	RunErrorPersistFailed    = "PERSIST_FAILED"
)

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrRunNotFound = &AppError{
		Code:       "RUN_NOT_FOUND",
		Message:    "Clustering run not found",
		StatusCode: 404,
	}

	ErrRunInProgress = &AppError{
		Code:       "RUN_IN_PROGRESS",
		Message:    "A clustering run is already executing for this collection",
		StatusCode: 409,
	}

	ErrRunFinished = &AppError{
		Code:       "RUN_FINISHED",
		Message:    "Clustering run has already finished",
		StatusCode: 409,
	}

	ErrClustersNotFound = &AppError{
		Code:       "CLUSTERS_NOT_FOUND",
		Message:    "No clusters persisted for this collection",
		StatusCode: 404,
	}

	ErrInvalidCollectionID = &AppError{
		Code:       "INVALID_COLLECTION_ID",
		Message:    "Collection id must be a valid UUID",
		StatusCode: 422,
	}

	ErrInvalidRunID = &AppError{
		Code:       "INVALID_RUN_ID",
		Message:    "Run id must be a valid UUID",
		StatusCode: 422,
	}
)
