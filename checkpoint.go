package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Checkpoint serialization for the sentiment encoder.
//
// File layout:
//
//	[4 bytes]  uint32 little-endian: JSON header length
//	[N bytes]  JSON-encoded EncoderConfig
//	[...]      raw float64 little-endian tensor data, in Parameters() order
//
// The config header means a checkpoint is self-describing: Load rebuilds the
// model shape from the header, then streams the weights in. Parameters()
// guarantees a stable tensor order, so save and load never disagree about
// which bytes belong to which matrix.
//
// Gradients and optimizer state are NOT saved. A checkpoint is a model for
// inference or a warm start, not a resumable training session.
//
// ===========================================================================

// Save writes the model config and weights to path. The write goes to a
// temporary file first and is renamed into place, so a crash mid-save never
// leaves a truncated checkpoint behind.
func (m *SentimentEncoder) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("checkpoint: creating %s: %w", tmp, err)
	}
	defer f.Close()

	header, err := json.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("checkpoint: encoding config: %w", err)
	}

	if err := binary.Write(f, binary.LittleEndian, uint32(len(header))); err != nil {
		return fmt.Errorf("checkpoint: writing header length: %w", err)
	}
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("checkpoint: writing header: %w", err)
	}

	for i, p := range m.Parameters() {
		if err := binary.Write(f, binary.LittleEndian, p.data); err != nil {
			return fmt.Errorf("checkpoint: writing tensor %d: %w", i, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("checkpoint: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("checkpoint: renaming into place: %w", err)
	}
	return nil
}

// LoadSentimentEncoder reads a checkpoint written by Save and returns a model
// ready for inference or further training.
func LoadSentimentEncoder(path string) (*SentimentEncoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening %s: %w", path, err)
	}
	defer f.Close()

	var headerLen uint32
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("checkpoint: reading header length: %w", err)
	}
	if headerLen == 0 || headerLen > 1<<20 {
		return nil, fmt.Errorf("checkpoint: implausible header length %d, file is not a checkpoint", headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("checkpoint: reading header: %w", err)
	}

	var config EncoderConfig
	if err := json.Unmarshal(header, &config); err != nil {
		return nil, fmt.Errorf("checkpoint: decoding config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("checkpoint: invalid config in header: %w", err)
	}

	// Seed is irrelevant here, every weight is about to be overwritten.
	model, err := NewSentimentEncoder(config, 0)
	if err != nil {
		return nil, err
	}

	for i, p := range model.Parameters() {
		if err := binary.Read(f, binary.LittleEndian, p.data); err != nil {
			return nil, fmt.Errorf("checkpoint: reading tensor %d (shape %v): %w", i, p.Shape(), err)
		}
	}

	// A well-formed checkpoint ends exactly at the last tensor. Trailing
	// bytes mean the file was written by a different model shape.
	var trailing [1]byte
	if n, _ := f.Read(trailing[:]); n != 0 {
		return nil, fmt.Errorf("checkpoint: trailing data after %d tensors, config/weights mismatch", len(model.Parameters()))
	}

	return model, nil
}
