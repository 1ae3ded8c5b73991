package aml

import "errors"

// Object lifecycle errors
var (
	ErrAlreadyStarted   = errors.New("object already started")
	ErrStartedOnAnother = errors.New("object already started on another loop")
	ErrNotStarted       = errors.New("object is not started on this loop")
	ErrCannotStartLoop  = errors.New("the loop object itself cannot be started")
	ErrBackendRejected  = errors.New("backend rejected installation")
	ErrTryRefFailed     = errors.New("no live object with that id")
	ErrWrongObjectKind  = errors.New("operation not valid for this object kind")
	ErrNotFDObject      = errors.New("object does not carry a file descriptor")
)

// Backend errors
var (
	ErrBackendNewState   = errors.New("backend failed to construct state")
	ErrUnknownBackend    = errors.New("no backend registered under that name")
	ErrBackendAlreadySet = errors.New("a backend is already registered under that name")
	ErrNoDefaultBackend  = errors.New("no backend registered for this platform")
)

// Thread pool errors
var (
	ErrPoolClosed = errors.New("thread pool has no remaining users")
)

// Default loop errors
var (
	ErrNoDefaultLoop = errors.New("no default loop has been set")
)
