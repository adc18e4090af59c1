package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kedgeproxy/kedge/internal/kdl"
)

// LoadedDocument pairs a parsed document with the source name used for
// diagnostics.
type LoadedDocument struct {
	Doc    *kdl.Document
	Source string
}

// Source resolves a filesystem entry point into parsed documents. The
// parsing layer treats it as a black box that either yields documents
// or fails.
type Source interface {
	Collect(ctx context.Context, entryPath string) ([]LoadedDocument, error)
}

// FileSource reads a single .kdl file, or every .kdl file directly
// inside a directory in lexical order.
type FileSource struct{}

func (FileSource) Collect(ctx context.Context, entryPath string) ([]LoadedDocument, error) {
	info, err := os.Stat(entryPath)
	if err != nil {
		return nil, err
	}

	paths := []string{entryPath}
	if info.IsDir() {
		entries, err := os.ReadDir(entryPath)
		if err != nil {
			return nil, err
		}
		paths = paths[:0]
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".kdl") {
				continue
			}
			paths = append(paths, filepath.Join(entryPath, e.Name()))
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			return nil, fmt.Errorf("no .kdl files in %s", entryPath)
		}
	}

	out := make([]LoadedDocument, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc, err := kdl.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, LoadedDocument{Doc: doc, Source: path})
	}
	return out, nil
}

// Load collects documents from entryPath and parses each into a merged
// Config: services accumulate across files, the first observability
// block wins. Consistency across files is the operator's business;
// each file is validated on its own.
func Load(ctx context.Context, src Source, entryPath string) (*Config, error) {
	docs, err := src.Collect(ctx, entryPath)
	if err != nil {
		return nil, err
	}

	merged := &Config{}
	for _, ld := range docs {
		cfg, err := ParseDocument(ld.Doc, ld.Source)
		if err != nil {
			return nil, err
		}
		merged.Services = append(merged.Services, cfg.Services...)
		if merged.Observability == nil {
			merged.Observability = cfg.Observability
		}
	}
	return merged, nil
}
