// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/warden-foundation/warden/lib/codec"
)

// frameHeaderSize is the fixed per-frame header: 1 byte compression
// tag, 1 byte flags, 4 bytes uncompressed length, 4 bytes payload
// length (big-endian).
const frameHeaderSize = 10

// frameFlagSealed marks a frame encrypted with the sink's sealer.
const frameFlagSealed = 0x01

// maxFrameSize bounds a single frame payload. Audit records are tiny;
// anything near this size indicates a corrupt sink file.
const maxFrameSize = 1 << 20

// SinkOptions configures a Sink.
type SinkOptions struct {
	// Compression is the per-frame compression algorithm. Frames that
	// do not shrink are stored raw regardless.
	Compression Compression

	// SealKey, when non-nil, enables XChaCha20-Poly1305 sealing of
	// every frame. Must be KeySize bytes.
	SealKey []byte
}

// Sink is an append-only framed audit log writer. Safe for concurrent
// use; frames are written whole under an internal mutex.
type Sink struct {
	mu          sync.Mutex
	file        *os.File
	compression Compression
	sealer      *sealer
}

// OpenSink opens (creating or appending) the sink file at path.
func OpenSink(path string, options SinkOptions) (*Sink, error) {
	var frameSealer *sealer
	if options.SealKey != nil {
		var err error
		frameSealer, err = newSealer(options.SealKey)
		if err != nil {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening sink %s: %w", path, err)
	}

	return &Sink{
		file:        file,
		compression: options.Compression,
		sealer:      frameSealer,
	}, nil
}

// Append encodes a record and writes it as one frame.
func (s *Sink) Append(record Record) error {
	encoded, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit: encoding record: %w", err)
	}

	tag := s.compression
	payload, err := compressFrame(encoded, tag)
	if errors.Is(err, errIncompressible) {
		tag = CompressionNone
		payload = encoded
	} else if err != nil {
		return err
	}

	var flags byte
	if s.sealer != nil {
		flags |= frameFlagSealed
		payload, err = s.sealer.seal(payload)
		if err != nil {
			return err
		}
	}

	header := make([]byte, frameHeaderSize)
	header[0] = byte(tag)
	header[1] = flags
	binary.BigEndian.PutUint32(header[2:6], uint32(len(encoded)))
	binary.BigEndian.PutUint32(header[6:10], uint32(len(payload)))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Header and payload in one write so a reader tailing the file
	// never observes a header without its frame.
	frame := append(header, payload...)
	if _, err := s.file.Write(frame); err != nil {
		return fmt.Errorf("audit: writing frame: %w", err)
	}
	return nil
}

// Sync flushes the sink file to stable storage.
func (s *Sink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Close syncs and closes the sink file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("audit: syncing sink: %w", err)
	}
	return s.file.Close()
}

// Reader replays a sink file frame by frame. Reading is for external
// consumers and tests; the kernel core never consults its own stream.
type Reader struct {
	file   *os.File
	sealer *sealer
}

// OpenReader opens a sink file for replay. sealKey must match the key
// the sink was written with, or be nil for unsealed sinks.
func OpenReader(path string, sealKey []byte) (*Reader, error) {
	var frameSealer *sealer
	if sealKey != nil {
		var err error
		frameSealer, err = newSealer(sealKey)
		if err != nil {
			return nil, err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: opening sink for replay: %w", err)
	}
	return &Reader{file: file, sealer: frameSealer}, nil
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r.file, header); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("audit: reading frame header: %w", err)
	}

	tag := Compression(header[0])
	flags := header[1]
	uncompressedSize := binary.BigEndian.Uint32(header[2:6])
	payloadSize := binary.BigEndian.Uint32(header[6:10])
	if payloadSize > maxFrameSize || uncompressedSize > maxFrameSize {
		return Record{}, fmt.Errorf("audit: frame size %d exceeds limit", payloadSize)
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r.file, payload); err != nil {
		return Record{}, fmt.Errorf("audit: reading frame payload: %w", err)
	}

	if flags&frameFlagSealed != 0 {
		if r.sealer == nil {
			return Record{}, errors.New("audit: sealed frame but no seal key provided")
		}
		var err error
		payload, err = r.sealer.unseal(payload)
		if err != nil {
			return Record{}, err
		}
	}

	encoded, err := decompressFrame(payload, tag, int(uncompressedSize))
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := codec.Unmarshal(encoded, &record); err != nil {
		return Record{}, fmt.Errorf("audit: decoding record: %w", err)
	}
	return record, nil
}

// ReadAll replays every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
