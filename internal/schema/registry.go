// Package schema holds the per-packet field offset and type code tables that
// drive the packet decoder. Tables are immutable once built and are replaced
// wholesale on refresh.
package schema

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// FieldSchema describes where the semantic fields of one packet live in the
// framed field map. Offsets[i] is the positional key of the i-th semantic
// field of the packet's layout. A zero-length schema means "decode with
// defaults".
type FieldSchema struct {
	Name     string
	TypeCode int
	Offsets  []byte
}

// Len returns the number of declared offsets.
func (s FieldSchema) Len() int {
	return len(s.Offsets)
}

// Offset returns the positional key for the given ordinal.
func (s FieldSchema) Offset(ordinal int) (byte, bool) {
	if ordinal < 0 || ordinal >= len(s.Offsets) {
		return 0, false
	}
	return s.Offsets[ordinal], true
}

// IsZero reports whether the schema declares no offsets.
func (s FieldSchema) IsZero() bool {
	return len(s.Offsets) == 0
}

// Table is one immutable version of the offset and type code tables.
type Table struct {
	schemas map[string]FieldSchema
	byCode  map[int]string
}

// NewTable merges the two parallel tables. Names present only in codes get a
// zero-length schema; names present only in offsets get type code 0 and are
// not reachable through Lookup.
func NewTable(offsets map[string][]byte, codes map[string]int) (*Table, error) {
	t := &Table{
		schemas: make(map[string]FieldSchema, len(offsets)),
		byCode:  make(map[int]string, len(codes)),
	}

	for name, offs := range offsets {
		cp := make([]byte, len(offs))
		copy(cp, offs)
		t.schemas[name] = FieldSchema{Name: name, Offsets: cp}
	}

	names := make([]string, 0, len(codes))
	for name := range codes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		code := codes[name]
		if prev, dup := t.byCode[code]; dup {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateTypeCode, code, prev, name)
		}
		t.byCode[code] = name
		s := t.schemas[name]
		s.Name = name
		s.TypeCode = code
		t.schemas[name] = s
	}

	return t, nil
}

// EmptyTable returns a table with no schemas.
func EmptyTable() *Table {
	return &Table{
		schemas: map[string]FieldSchema{},
		byCode:  map[int]string{},
	}
}

// Registry serves schema lookups from the current table and swaps in new
// tables atomically.
type Registry struct {
	table   atomic.Pointer[Table]
	version atomic.Uint64

	mu          sync.Mutex
	offsetsPath string
	indexesPath string

	logger zerolog.Logger
}

// NewRegistry creates a registry holding an empty table.
func NewRegistry(logger zerolog.Logger) *Registry {
	r := &Registry{logger: logger}
	r.table.Store(EmptyTable())
	return r
}

// GetSchema returns the schema for a logical packet name. A missing name
// yields a zero-length schema carrying only the name.
func (r *Registry) GetSchema(name string) FieldSchema {
	t := r.table.Load()
	if s, ok := t.schemas[name]; ok {
		return s
	}
	return FieldSchema{Name: name}
}

// Lookup resolves a wire type code to its schema.
func (r *Registry) Lookup(code int) (FieldSchema, bool) {
	t := r.table.Load()
	name, ok := t.byCode[code]
	if !ok {
		return FieldSchema{}, false
	}
	return t.schemas[name], true
}

// Swap replaces the whole table. Readers observe either the previous or the
// new table.
func (r *Registry) Swap(t *Table) {
	if t == nil {
		t = EmptyTable()
	}
	r.table.Store(t)
	v := r.version.Add(1)

	r.logger.Info().
		Int("schemas", len(t.schemas)).
		Int("type_codes", len(t.byCode)).
		Uint64("version", v).
		Msg("schema table swapped")
}

// Load reads both tables from disk, remembers the paths for Reload and swaps
// the result in. On error the current table is kept.
func (r *Registry) Load(offsetsPath, indexesPath string) error {
	t, err := LoadTable(r.logger, offsetsPath, indexesPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.offsetsPath = offsetsPath
	r.indexesPath = indexesPath
	r.mu.Unlock()

	r.Swap(t)
	return nil
}

// Reload re-reads the tables from the paths given to Load.
func (r *Registry) Reload() error {
	r.mu.Lock()
	offsetsPath, indexesPath := r.offsetsPath, r.indexesPath
	r.mu.Unlock()

	if offsetsPath == "" && indexesPath == "" {
		return ErrNotLoaded
	}
	return r.Load(offsetsPath, indexesPath)
}

// Paths returns the files the registry was loaded from.
func (r *Registry) Paths() (offsets, indexes string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offsetsPath, r.indexesPath
}

// Names returns the sorted packet names of the current table.
func (r *Registry) Names() []string {
	t := r.table.Load()
	names := make([]string, 0, len(t.schemas))
	for name := range t.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of schemas in the current table.
func (r *Registry) Len() int {
	return len(r.table.Load().schemas)
}

// Version returns how many times the table has been swapped.
func (r *Registry) Version() uint64 {
	return r.version.Load()
}
