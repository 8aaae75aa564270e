package storage

import (
	"context"
	"fmt"
)

// CopyResult reports how many lines were copied per collection.
type CopyResult struct {
	Collections map[string]int
}

// Total returns the number of lines copied across all collections.
func (r CopyResult) Total() int {
	total := 0
	for _, n := range r.Collections {
		total += n
	}
	return total
}

// Copy replaces each named collection in dst with its content in src. Both backends
// must already be initialized. With no filenames, KnownCollections are copied.
// Collections copied before a failure stay copied.
func Copy(ctx context.Context, src, dst Backend, filenames []string) (CopyResult, error) {
	if len(filenames) == 0 {
		filenames = KnownCollections
	}
	result := CopyResult{Collections: make(map[string]int, len(filenames))}
	for _, name := range filenames {
		lines, err := src.ReadJSONL(ctx, name)
		if err != nil {
			return result, fmt.Errorf("failed to read %s from %s: %w", name, src.BackendType(), err)
		}
		if err := dst.WriteJSONL(ctx, name, lines); err != nil {
			return result, fmt.Errorf("failed to write %s to %s: %w", name, dst.BackendType(), err)
		}
		result.Collections[name] = len(lines)
	}
	return result, nil
}
