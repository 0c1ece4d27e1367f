// Package snapshot reads and writes the on-disk export of a store.
//
// Layout under <dir>/<store>/:
//
//	metaobjects_definitions/<type>/definition.json
//	metaobjects_definitions/<type>/metaobjects/<handle>.json
//	complete/<type>.json
//	sequence.json
//
// definition.json files are validated against an embedded CUE schema on
// read. Instance files are decoded as-is.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/ir"
)

const (
	definitionsDir = "metaobjects_definitions"
	metaobjectsDir = "metaobjects"
	completeDir    = "complete"
	definitionFile = "definition.json"
	sequenceFile   = "sequence.json"
)

// Snapshot is one store's export directory.
type Snapshot struct {
	root      string
	logger    *zap.Logger
	validator *validator
}

// New returns the snapshot of storeName under dir. Nothing is read or
// created until a method is called. A nil logger discards output.
func New(dir, storeName string, logger *zap.Logger) *Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshot{
		root:      filepath.Join(dir, storeName),
		logger:    logger,
		validator: &validator{},
	}
}

// FileError is a snapshot file that could not be read, decoded or
// validated. Err is a *SchemaError for schema violations.
type FileError struct {
	Type string
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Root returns the store directory.
func (s *Snapshot) Root() string {
	return s.root
}

func (s *Snapshot) typeDir(typ string) string {
	return filepath.Join(s.root, definitionsDir, typ)
}

// checkName rejects names that would escape their directory.
func checkName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}

// Types returns the types that have a definition.json, in ascending order.
func (s *Snapshot) Types() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, definitionsDir))
	if err != nil {
		return nil, fmt.Errorf("list snapshot types: %w", err)
	}
	var types []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.typeDir(e.Name()), definitionFile)); err != nil {
			s.logger.Debug("skipping directory without definition", zap.String("type", e.Name()))
			continue
		}
		types = append(types, e.Name())
	}
	sort.Strings(types)
	return types, nil
}

// Definition reads and validates the definition of typ. File problems are
// returned as *FileError; a missing file wraps fs.ErrNotExist.
func (s *Snapshot) Definition(typ string) (ir.Definition, error) {
	if err := checkName("type", typ); err != nil {
		return ir.Definition{}, err
	}
	path := filepath.Join(s.typeDir(typ), definitionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Definition{}, &FileError{Type: typ, Path: path, Op: "read", Err: err}
	}
	if err := s.validator.validateDefinition(path, data); err != nil {
		return ir.Definition{}, &FileError{Type: typ, Path: path, Op: "validate", Err: err}
	}

	var def ir.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return ir.Definition{}, &FileError{Type: typ, Path: path, Op: "decode", Err: err}
	}
	return def, nil
}

// Definitions reads the definition of every type. Types whose file cannot
// be read or fails validation are left out and returned as invalid; err is
// set only when the snapshot itself cannot be listed.
func (s *Snapshot) Definitions() (defs []ir.Definition, invalid []*FileError, err error) {
	types, err := s.Types()
	if err != nil {
		return nil, nil, err
	}
	defs = make([]ir.Definition, 0, len(types))
	for _, typ := range types {
		def, err := s.Definition(typ)
		var fe *FileError
		if errors.As(err, &fe) {
			s.logger.Warn("invalid definition skipped", zap.String("type", typ), zap.Error(err))
			invalid = append(invalid, fe)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		defs = append(defs, def)
	}
	return defs, invalid, nil
}

// Metaobjects reads every instance file of typ in file-name order. A type
// without an instance directory has no instances. Files that cannot be read
// or decoded are skipped and returned as invalid; err is set only when the
// directory cannot be listed.
func (s *Snapshot) Metaobjects(typ string) (objs []ir.Metaobject, invalid []*FileError, err error) {
	if err := checkName("type", typ); err != nil {
		return nil, nil, err
	}
	dir := filepath.Join(s.typeDir(typ), metaobjectsDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list metaobjects %s: %w", typ, err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			invalid = append(invalid, &FileError{Type: typ, Path: path, Op: "read", Err: err})
			continue
		}
		var m ir.Metaobject
		if err := json.Unmarshal(data, &m); err != nil {
			invalid = append(invalid, &FileError{Type: typ, Path: path, Op: "decode", Err: err})
			continue
		}
		if m.Type == "" {
			m.Type = typ
		}
		objs = append(objs, m)
	}
	for _, fe := range invalid {
		s.logger.Warn("invalid metaobject skipped", zap.String("type", typ), zap.Error(fe))
	}
	return objs, invalid, nil
}

// WriteDefinition writes definition.json for def.Type.
func (s *Snapshot) WriteDefinition(def ir.Definition) error {
	if err := checkName("type", def.Type); err != nil {
		return err
	}
	if def.FieldDefinitions == nil {
		def.FieldDefinitions = []ir.FieldDefinition{}
	}
	return writeJSON(filepath.Join(s.typeDir(def.Type), definitionFile), def)
}

// WriteMetaobject writes one instance file.
func (s *Snapshot) WriteMetaobject(m ir.Metaobject) error {
	if err := checkName("type", m.Type); err != nil {
		return err
	}
	if err := checkName("handle", m.Handle); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.typeDir(m.Type), metaobjectsDir, m.Handle+".json"), m)
}

// WriteComplete writes complete/<type>.json: the definition with its
// instances embedded under "metaobjects", keyed by type.
func (s *Snapshot) WriteComplete(def ir.Definition, objs []ir.Metaobject) error {
	if err := checkName("type", def.Type); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition %s: %w", def.Type, err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("encode definition %s: %w", def.Type, err)
	}
	if objs == nil {
		objs = []ir.Metaobject{}
	}
	body["metaobjects"] = objs
	return writeJSON(filepath.Join(s.root, completeDir, def.Type+".json"), map[string]any{def.Type: body})
}

// WriteSequence writes the creation order.
func (s *Snapshot) WriteSequence(seq []string) error {
	if seq == nil {
		seq = []string{}
	}
	return writeJSON(filepath.Join(s.root, sequenceFile), seq)
}

// ReadSequence reads the creation order. A missing file yields an error
// wrapping fs.ErrNotExist.
func (s *Snapshot) ReadSequence() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, sequenceFile))
	if err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	var seq []string
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	return seq, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
