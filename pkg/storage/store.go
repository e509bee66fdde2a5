// Package storage persists named artifacts. A name maps to exactly one
// artifact; saving again overwrites it and no history is kept.
package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Extension is appended to every artifact name on disk and in the bucket.
const Extension = ".joblib"

// Well-known artifact names.
const (
	PipelineArtifact   = "pipeline"
	FinalModelArtifact = "final_model"
)

// ErrArtifactNotFound is returned when a name has never been saved.
var ErrArtifactNotFound = errors.New("artifact not found")

// Store is a name-keyed blob store.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
	// URI locates an artifact for logging and tracking.
	URI(name string) string
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Save encodes v as compressed JSON and stores it under name.
func Save(ctx context.Context, s Store, name string, v any) error {
	if err := validateName(name); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode artifact %s", name)
	}
	if err := s.Put(ctx, name, encoder.EncodeAll(raw, nil)); err != nil {
		return errors.Wrapf(err, "save artifact %s", name)
	}
	return nil
}

// Load fetches name and decodes it into v.
func Load(ctx context.Context, s Store, name string, v any) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := s.Get(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "load artifact %s", name)
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return errors.Wrapf(err, "decompress artifact %s", name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode artifact %s", name)
	}
	return nil
}

// Publish copies the named artifacts byte for byte from one store to another.
func Publish(ctx context.Context, from, to Store, names ...string) error {
	for _, name := range names {
		data, err := from.Get(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "publish %s", name)
		}
		if err := to.Put(ctx, name, data); err != nil {
			return errors.Wrapf(err, "publish %s", name)
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Errorf("invalid artifact name %q", name)
	}
	return nil
}
