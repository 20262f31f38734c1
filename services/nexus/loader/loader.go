// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader parses CNM graph documents into frozen engine graphs.
//
// A graph document is JSON:
//
//	{
//	  "schemaVersion": "v1.0.0",
//	  "nodes": [{"id": "...", "type": "Material", "cssVector": {...}}],
//	  "links": [{"source": "...", "target": "...", "type": "related-to"}]
//	}
//
// The loader is the boundary where loosely typed input becomes the
// engine's closed type system: unknown node or edge types, duplicate ids,
// and dangling endpoints are rejected here with position context, so the
// engine itself never sees them. A document with zero nodes is valid and
// loads into an empty graph.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/mod/semver"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
)

var loaderTracer = otel.Tracer("nexus.loader")

// SupportedSchemaMajor is the graph document major version this loader
// accepts. Minor and patch revisions within the major are assumed
// compatible.
const SupportedSchemaMajor = "v1"

// MaxDocumentSize caps graph documents at 64MB.
const MaxDocumentSize = 64 * 1024 * 1024

// Sentinel errors for document loading.
var (
	// ErrDocumentTooLarge is returned when a document exceeds
	// MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("graph document too large")

	// ErrInvalidDocument is returned for malformed JSON or failed field
	// validation. The wrapped message carries position context.
	ErrInvalidDocument = errors.New("invalid graph document")

	// ErrUnsupportedSchema is returned when the document's schemaVersion
	// major does not match SupportedSchemaMajor.
	ErrUnsupportedSchema = errors.New("unsupported schema version")
)

// DocumentNode is one node entry of a graph document.
type DocumentNode struct {
	ID       string              `json:"id" validate:"required"`
	Type     string              `json:"type" validate:"required"`
	Features graph.FeatureVector `json:"cssVector,omitempty"`
	Origin   string              `json:"origin,omitempty"`
}

// DocumentLink is one link entry of a graph document.
type DocumentLink struct {
	Source        string  `json:"source" validate:"required"`
	Target        string  `json:"target" validate:"required"`
	Type          string  `json:"type" validate:"required"`
	Weight        float64 `json:"weight,omitempty"`
	Justification string  `json:"justification,omitempty"`
}

// Document is a CNM graph document.
type Document struct {
	SchemaVersion string         `json:"schemaVersion" validate:"required"`
	Nodes         []DocumentNode `json:"nodes"`
	Links         []DocumentLink `json:"links"`
}

// Loader parses and validates graph documents.
type Loader struct {
	validate *validator.Validate
	maxNodes int
	maxEdges int
}

// Option configures a Loader.
type Option func(*Loader)

// WithGraphLimits caps the node and edge counts of loaded graphs.
// Non-positive values keep the engine defaults.
func WithGraphLimits(maxNodes, maxEdges int) Option {
	return func(l *Loader) {
		l.maxNodes = maxNodes
		l.maxEdges = maxEdges
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{validate: validator.New()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadBytes parses a graph document and builds a frozen engine graph.
//
// Errors:
//
//	ErrDocumentTooLarge - the raw document exceeds MaxDocumentSize
//	ErrInvalidDocument - malformed JSON, failed validation, unknown
//	types, duplicate ids, or dangling endpoints (with position context)
//	ErrUnsupportedSchema - schemaVersion major mismatch
func (l *Loader) LoadBytes(data []byte) (*graph.Graph, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrDocumentTooLarge, len(data), MaxDocumentSize)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return l.Build(doc)
}

// LoadFile reads and parses a graph document from disk.
func (l *Loader) LoadFile(ctx context.Context, path string) (*graph.Graph, error) {
	if ctx == nil {
		return nil, graph.ErrNilContext
	}
	_, span := loaderTracer.Start(ctx, "loader.LoadFile")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)",
			ErrDocumentTooLarge, path, info.Size(), MaxDocumentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	g, err := l.LoadBytes(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	span.SetAttributes(
		attribute.Int("nodes", g.NodeCount()),
		attribute.Int("edges", g.EdgeCount()),
	)
	return g, nil
}

// Build converts a parsed Document into a frozen engine graph.
func (l *Loader) Build(doc Document) (*graph.Graph, error) {
	if err := l.validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := checkSchemaVersion(doc.SchemaVersion); err != nil {
		return nil, err
	}

	var opts []graph.GraphOption
	if l.maxNodes > 0 {
		opts = append(opts, graph.WithMaxNodes(l.maxNodes))
	}
	if l.maxEdges > 0 {
		opts = append(opts, graph.WithMaxEdges(l.maxEdges))
	}
	g := graph.NewGraph(opts...)

	for i, dn := range doc.Nodes {
		if err := l.validate.Struct(dn); err != nil {
			return nil, fmt.Errorf("%w: node %d: %v", ErrInvalidDocument, i, err)
		}
		nodeType, err := graph.ParseNodeType(dn.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d (%s): %v", ErrInvalidDocument, i, dn.ID, err)
		}
		node := graph.Node{ID: dn.ID, Type: nodeType, Features: dn.Features, Origin: dn.Origin}
		if err := g.AddNode(node); err != nil {
			return nil, fmt.Errorf("%w: node %d (%s): %v", ErrInvalidDocument, i, dn.ID, err)
		}
	}

	for i, dl := range doc.Links {
		if err := l.validate.Struct(dl); err != nil {
			return nil, fmt.Errorf("%w: link %d: %v", ErrInvalidDocument, i, err)
		}
		edgeType, err := graph.ParseEdgeType(dl.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: link %d (%s -> %s): %v", ErrInvalidDocument, i, dl.Source, dl.Target, err)
		}
		edge := graph.Edge{
			Source:        dl.Source,
			Target:        dl.Target,
			Type:          edgeType,
			Weight:        dl.Weight,
			Justification: dl.Justification,
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("%w: link %d (%s -> %s): %v", ErrInvalidDocument, i, dl.Source, dl.Target, err)
		}
	}

	g.Freeze()
	slog.Debug("Graph document loaded",
		"schema", doc.SchemaVersion,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount())
	return g, nil
}

// checkSchemaVersion gates documents on their major version. A bare
// "1.0.0" is accepted as "v1.0.0".
func checkSchemaVersion(version string) error {
	canonical := version
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrUnsupportedSchema, version)
	}
	if semver.Major(canonical) != SupportedSchemaMajor {
		return fmt.Errorf("%w: %q (supported major: %s)", ErrUnsupportedSchema, version, SupportedSchemaMajor)
	}
	return nil
}
