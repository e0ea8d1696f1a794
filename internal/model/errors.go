package model

import (
	"errors"
)

var (
	// ErrNoCandidates means the candidate source produced nothing usable.
	// Fatal at startup: no workers are spawned without resources.
	ErrNoCandidates = errors.New("no proxy candidates")
	// ErrNoJobs means every job failed to prepare or all were filtered out.
	ErrNoJobs = errors.New("no jobs to run")
)
