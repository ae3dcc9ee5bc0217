package main

import (
	"strconv"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
)

// Exit statuses, following sysexits(3) where one applies.
const (
	exitDelivered   = 0
	exitUndelivered = 1
	exitUsage       = 64
	exitUnavailable = 69
	exitFatal       = 70
)

// exitError carries a process exit status out of a command. err may be
// nil when the status alone is the message.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// statusCode maps a broadcast status to the process exit status.
func statusCode(s broadcast.Status) int {
	switch s {
	case broadcast.StatusDelivered:
		return exitDelivered
	case broadcast.StatusUnavailable:
		return exitUnavailable
	default:
		return exitUndelivered
	}
}
