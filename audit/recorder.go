// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"log/slog"
	"sync"
)

// Recorder assigns sequence numbers and writes records to a Sink. A
// nil *Recorder is valid and discards everything, so components take a
// Recorder without nil checks at every call site.
//
// Sink write failures are logged and swallowed: the audit stream is an
// output of kernel decisions, never an input — a full disk must not
// turn an authorization decision into an error.
type Recorder struct {
	mu       sync.Mutex
	sequence uint64
	sink     *Sink
	logger   *slog.Logger
}

// NewRecorder wraps a sink. logger may be nil to suppress write-failure
// diagnostics.
func NewRecorder(sink *Sink, logger *slog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Emit assigns the next sequence number and appends the record. No-op
// on a nil Recorder.
func (r *Recorder) Emit(record Record) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.sequence++
	record.Sequence = r.sequence
	r.mu.Unlock()

	if err := r.sink.Append(record); err != nil && r.logger != nil {
		r.logger.Error("audit record dropped",
			"type", string(record.Type),
			"sequence", record.Sequence,
			"error", err,
		)
	}
}
