// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"
)

// MaxCatalogFileSize bounds how much data Load will parse (16 MiB).
const MaxCatalogFileSize = 16 << 20

// catalogTracerName is the OTel tracer name for catalog loading.
const catalogTracerName = "scriptfinder.catalog"

// Format identifies a catalog serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a Format from a file extension.
//
// Outputs:
//
//	Format - The detected format.
//	error - Wraps ErrInvalidCatalog for unknown extensions.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: unsupported catalog extension %q", ErrInvalidCatalog, filepath.Ext(path))
	}
}

// LoadFile reads and parses the catalog at path.
//
// Description:
//
//	Convenience wrapper around Load that detects the format from the file
//	extension. Any failure is a startup error.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - Path to a .json, .yaml/.yml or .toml file.
//
// Outputs:
//
//	*Catalog - The loaded catalog.
//	error - Non-nil if the file cannot be read or is invalid.
func LoadFile(ctx context.Context, path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	if info.Size() > MaxCatalogFileSize {
		return nil, fmt.Errorf("LoadFile: %w: %s exceeds maximum size (%d > %d)",
			ErrInvalidCatalog, path, info.Size(), MaxCatalogFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}

	c, err := Load(ctx, data, format)
	if err != nil {
		return nil, fmt.Errorf("LoadFile %s: %w", path, err)
	}
	return c, nil
}

// Load parses and indexes catalog data.
//
// Description:
//
//	The document is a single mapping from game identifier to entry:
//
//	  {"rivals": {"script": "...", "key_needed": false, "executors": ["..."]}}
//
//	Entry contents are taken as-is; only the document structure and the
//	keys are checked. Keys are normalized (see keys.Normalize).
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw document bytes.
//	format - Serialization of data.
//
// Outputs:
//
//	*Catalog - The immutable catalog.
//	error - Wraps ErrInvalidCatalog on parse failure, an empty document or a
//	bad key.
func Load(ctx context.Context, data []byte, format Format) (*Catalog, error) {
	_, span := otel.Tracer(catalogTracerName).Start(ctx, "catalog.Load")
	defer span.End()
	span.SetAttributes(attribute.String("format", string(format)), attribute.Int("bytes", len(data)))

	c, err := load(data, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog load failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("entries", c.Len()))
	slog.Info("script catalog loaded",
		slog.String("format", string(format)),
		slog.Int("entries", c.Len()),
	)
	return c, nil
}

func load(data []byte, format Format) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidCatalog)
	}
	if len(data) > MaxCatalogFileSize {
		return nil, fmt.Errorf("%w: document exceeds maximum size (%d > %d)", ErrInvalidCatalog, len(data), MaxCatalogFileSize)
	}

	raw := make(map[string]Entry)
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidCatalog, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidCatalog, format, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidCatalog)
	}

	return New(raw)
}
