// Package mimetab maps file extensions to Content-Type header values.
package mimetab

import (
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Fallback is the Content-Type used for extensions absent from a table.
const Fallback = "application/octet-stream"

// defaults is the built-in extension table. The empty key is the fallback.
var defaults = map[string]string{
	".manifest": "text/cache-manifest",
	".html":     "text/html",
	".png":      "image/png",
	".jpg":      "image/jpg",
	".svg":      "image/svg+xml",
	".css":      "text/css",
	".js":       "application/javascript",
	".json":     "application/json",
	".xml":      "application/xml",
	"":          Fallback,
}

// Table is an immutable extension to Content-Type mapping.
// The zero value resolves every name to Fallback.
type Table struct {
	types map[string]string
}

// Default returns the built-in table.
func Default() Table {
	t, _ := New(nil)
	return t
}

// New builds a table from the built-in entries overlaid with entries.
// Keys must be empty or start with a dot; values must be valid media types.
// An entry with the empty key replaces the fallback type.
func New(entries map[string]string) (Table, error) {
	types := make(map[string]string, len(defaults)+len(entries))
	for ext, typ := range defaults {
		types[ext] = typ
	}

	var result *multierror.Error
	for _, ext := range sortedKeys(entries) {
		typ := entries[ext]
		if ext != "" && (!strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, "/\\")) {
			result = multierror.Append(result, fmt.Errorf("extension %q: must start with a dot", ext))
			continue
		}
		if _, _, err := mime.ParseMediaType(typ); err != nil {
			result = multierror.Append(result, fmt.Errorf("extension %q: invalid content type %q: %w", ext, typ, err))
			continue
		}
		types[ext] = typ
	}
	if err := result.ErrorOrNil(); err != nil {
		return Table{}, err
	}
	return Table{types: types}, nil
}

// Lookup returns the Content-Type for name based on its trailing
// dot-suffix. Matching is exact and case-sensitive.
func (t Table) Lookup(name string) string {
	if typ, ok := t.types[path.Ext(name)]; ok {
		return typ
	}
	if typ, ok := t.types[""]; ok {
		return typ
	}
	return Fallback
}

// Len returns the number of entries, including the fallback.
func (t Table) Len() int {
	return len(t.types)
}

// Extensions returns the non-empty extensions in the table, sorted.
func (t Table) Extensions() []string {
	exts := make([]string, 0, len(t.types))
	for _, ext := range sortedKeys(t.types) {
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
