// Package fsjson writes whole JSON documents with crash-safe semantics:
// marshal, write to a temp file, rename over the target. If the rename
// cannot complete the previous file remains fully intact.
package fsjson

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/valutatrade/hub/internal/domain"
)

// WriteAtomic replaces the file at path with the JSON encoding of data.
func WriteAtomic(path string, data any) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode", Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &domain.StorageError{Op: "mkdir", Path: path, Err: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return &domain.StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &domain.StorageError{Op: "rename", Path: path, Err: err}
	}

	return nil
}
