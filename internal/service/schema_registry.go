package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

// Schema is a parsed JSON Schema Draft-07 document plus the raw bytes
// used for both validation and prompt-building (so the model sees the
// exact schema the validator enforces).
type Schema struct {
	Version string
	Raw     json.RawMessage
	Decoded map[string]interface{}
}

// SchemaRegistry loads schemas by name from a directory of
// "<name>.json" files, caching each one the first time it's requested.
// A schema file never changes under a running process, so the cache
// never needs invalidation — only Clear(), for tests.
type SchemaRegistry struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Schema
}

// NewSchemaRegistry builds a SchemaRegistry reading from dir.
func NewSchemaRegistry(dir string) *SchemaRegistry {
	return &SchemaRegistry{dir: dir, cache: make(map[string]*Schema)}
}

// Get loads and caches the schema named version (the file
// "<version>.json" under the registry's directory), returning the same
// *Schema on every subsequent call.
func (r *SchemaRegistry) Get(version string) (*Schema, error) {
	r.mu.RLock()
	if s, ok := r.cache[version]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cache[version]; ok {
		return s, nil
	}

	path := filepath.Join(r.dir, version+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindSchemaRegistry, fmt.Sprintf("schema registry: load %q", version), err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindSchemaRegistry, fmt.Sprintf("schema registry: parse %q", version), err)
	}
	if decoded == nil {
		return nil, pipelineerr.New(pipelineerr.KindSchemaRegistry, fmt.Sprintf("schema registry: %q is not a JSON object", version))
	}

	s := &Schema{Version: version, Raw: raw, Decoded: decoded}
	r.cache[version] = s
	return s, nil
}

// List returns every schema name currently cached, sorted.
func (r *SchemaRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.cache))
	for name := range r.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear empties the cache.
func (r *SchemaRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*Schema)
}

// ListAvailable scans the registry directory for "<name>.json" files
// without loading them into the cache, and returns their names sorted.
func (r *SchemaRegistry) ListAvailable() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindSchemaRegistry, "schema registry: list directory", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}
