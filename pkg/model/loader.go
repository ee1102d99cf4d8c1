// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ironlayer/pkg/logging"
	"ironlayer/pkg/sqltoolkit"
)

// ErrValidation is returned when a loaded model violates a structural
// invariant (e.g. an INCREMENTAL_BY_TIME_RANGE model missing time_column).
var ErrValidation = errors.New("model: validation error")

var refMacroRE = regexp.MustCompile(`\{\{\s*ref\(\s*['"]([a-zA-Z0-9_.]+)['"]\s*\)\s*\}\}`)

var headerLineRE = regexp.MustCompile(`^--\s*([a-zA-Z_]+)\s*:\s*(.*)$`)

var recognizedHeaderKeys = map[string]struct{}{
	"name": {}, "kind": {}, "materialization": {}, "time_column": {},
	"unique_key": {}, "partition_by": {}, "incremental_strategy": {},
	"owner": {}, "tags": {}, "dependencies": {},
	"contract_mode": {}, "contract_columns": {},
}

// Loader loads model definitions from a directory tree of .sql files.
type Loader struct {
	log     logging.Logger
	toolkit sqltoolkit.Toolkit
	dialect sqltoolkit.Dialect
}

// NewLoader constructs a Loader. toolkit defaults to the process-wide
// registry singleton when nil.
func NewLoader(log logging.Logger, toolkit sqltoolkit.Toolkit, dialect sqltoolkit.Dialect) *Loader {
	if toolkit == nil {
		toolkit = sqltoolkit.Get()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Loader{log: log, toolkit: toolkit, dialect: dialect}
}

// LoadDirectory walks root for *.sql files and loads every model within,
// two-pass: headers and raw SQL first, then ref() resolution and
// dependency/content-hash computation once every raw model is known.
func (l *Loader) LoadDirectory(root string, fsys fs.FS) (map[string]*Definition, error) {
	rawModels := make(map[string]*rawModel)

	walkErr := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		rm, err := parseFile(path, string(data))
		if err != nil {
			l.log.Warn("skipping malformed model file", logging.NewField("path", path), logging.NewField("error", err.Error()))
			return nil
		}
		if _, exists := rawModels[rm.name]; exists {
			return fmt.Errorf("%w: duplicate model name %q (file %s)", ErrValidation, rm.name, path)
		}
		rawModels[rm.name] = rm
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	defs := make(map[string]*Definition, len(rawModels))
	for name, rm := range rawModels {
		def, err := l.resolve(rm, rawModels)
		if err != nil {
			return nil, err
		}
		defs[name] = def
	}
	return defs, nil
}

type rawModel struct {
	name                string
	kind                string
	materialization     string
	timeColumn          string
	uniqueKey           string
	partitionBy         string
	incrementalStrategy string
	owner               string
	tags                []string
	declaredDeps        []string
	contractMode        string
	contractColumns     string
	body                string
	sourceFile          string
}

func parseFile(path, contents string) (*rawModel, error) {
	lines := strings.Split(contents, "\n")
	rm := &rawModel{sourceFile: path}

	bodyStart := 0
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		if !strings.HasPrefix(strings.TrimSpace(trimmed), "--") {
			bodyStart = i
			break
		}
		m := headerLineRE.FindStringSubmatch(trimmed)
		if m == nil {
			bodyStart = i
			break
		}
		key, value := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		if _, known := recognizedHeaderKeys[key]; !known {
			continue
		}
		switch key {
		case "name":
			rm.name = value
		case "kind":
			rm.kind = value
		case "materialization":
			rm.materialization = value
		case "time_column":
			rm.timeColumn = value
		case "unique_key":
			rm.uniqueKey = value
		case "partition_by":
			rm.partitionBy = value
		case "incremental_strategy":
			rm.incrementalStrategy = value
		case "owner":
			rm.owner = value
		case "tags":
			rm.tags = splitCommaList(value)
		case "dependencies":
			rm.declaredDeps = splitCommaList(value)
		case "contract_mode":
			rm.contractMode = value
		case "contract_columns":
			rm.contractColumns = value
		}
		bodyStart = i + 1
	}

	rm.body = strings.TrimLeft(strings.Join(lines[bodyStart:], "\n"), "\n")

	if rm.name == "" {
		base := filepath.Base(path)
		return nil, fmt.Errorf("%w: model file %s has no name header", ErrValidation, base)
	}
	if rm.kind == "" {
		rm.kind = string(KindFullRefresh)
	}
	if rm.materialization == "" {
		rm.materialization = string(MaterializationTable)
	}
	return rm, nil
}

// parseContractColumns parses a "-- contract_columns:" header value: a
// comma-separated list of "name:type" or "name:type:NOTNULL" entries.
// Columns are nullable by default, matching the contract schema's default.
func parseContractColumns(value string) ([]ContractColumn, error) {
	if value == "" {
		return nil, nil
	}
	parts := splitCommaList(value)
	cols := make([]ContractColumn, 0, len(parts))
	for _, p := range parts {
		fields := strings.Split(p, ":")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: malformed contract_columns entry %q, want name:type[:NOTNULL]", ErrValidation, p)
		}
		col := ContractColumn{
			Name:     strings.TrimSpace(fields[0]),
			DataType: strings.TrimSpace(fields[1]),
			Nullable: true,
		}
		if len(fields) >= 3 && strings.EqualFold(strings.TrimSpace(fields[2]), "NOTNULL") {
			col.Nullable = false
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *Loader) resolve(rm *rawModel, all map[string]*rawModel) (*Definition, error) {
	cleanSQL := refMacroRE.ReplaceAllStringFunc(rm.body, func(match string) string {
		groups := refMacroRE.FindStringSubmatch(match)
		return groups[1]
	})

	scope, err := l.toolkit.ScopeAnalyzer().ExtractTables(cleanSQL, l.dialect)
	discovered := make(map[string]struct{})
	if err == nil {
		for _, t := range scope.ReferencedTables {
			if _, known := all[t.Name]; known {
				discovered[t.Name] = struct{}{}
			}
		}
	} else {
		l.log.Warn("scope analysis failed during model load; relying on declared dependencies only",
			logging.NewField("model", rm.name), logging.NewField("error", err.Error()))
	}
	for _, d := range rm.declaredDeps {
		discovered[d] = struct{}{}
	}
	deps := make([]string, 0, len(discovered))
	for d := range discovered {
		deps = append(deps, d)
	}
	sort.Strings(deps)

	norm, err := l.toolkit.Normalizer().Normalize(cleanSQL, l.dialect, "")
	var hashInput string
	if err != nil {
		l.log.Warn("normalization failed during model load; hashing raw clean SQL",
			logging.NewField("model", rm.name), logging.NewField("error", err.Error()))
		hashInput = cleanSQL
	} else {
		hashInput = norm.NormalizedSQL
	}
	sum := sha256.Sum256([]byte(hashInput))

	var outputColumns []string
	if cols, err := l.toolkit.ScopeAnalyzer().ExtractColumns(cleanSQL, l.dialect); err == nil && !cols.HasStar {
		outputColumns = cols.OutputColumns
	} else if err != nil {
		l.log.Warn("column extraction failed during model load; contract checks will see no output columns",
			logging.NewField("model", rm.name), logging.NewField("error", err.Error()))
	}

	contractMode := ContractDisabled
	if rm.contractMode != "" {
		contractMode = ContractMode(strings.ToUpper(rm.contractMode))
	}
	contractColumns, err := parseContractColumns(rm.contractColumns)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		Name:                rm.name,
		Kind:                Kind(rm.kind),
		Materialization:     Materialization(rm.materialization),
		TimeColumn:          rm.timeColumn,
		UniqueKey:           rm.uniqueKey,
		PartitionBy:         rm.partitionBy,
		IncrementalStrategy: rm.incrementalStrategy,
		Owner:               rm.owner,
		Tags:                rm.tags,
		RawSQL:              rm.body,
		CleanSQL:            cleanSQL,
		ContentHash:         hex.EncodeToString(sum[:]),
		Dependencies:        deps,
		ContractMode:        contractMode,
		ContractColumns:     contractColumns,
		OutputColumns:       outputColumns,
		SourceFile:          rm.sourceFile,
	}

	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks the structural invariants every Definition must satisfy.
func Validate(def *Definition) error {
	switch def.Kind {
	case KindFullRefresh, KindIncrementalByTimeRange, KindMergeByKey, KindView:
	default:
		return fmt.Errorf("%w: model %q has unknown kind %q", ErrValidation, def.Name, def.Kind)
	}
	if def.Kind == KindIncrementalByTimeRange && def.TimeColumn == "" {
		return fmt.Errorf("%w: model %q is INCREMENTAL_BY_TIME_RANGE but declares no time_column", ErrValidation, def.Name)
	}
	if def.Kind == KindMergeByKey && def.UniqueKey == "" {
		return fmt.Errorf("%w: model %q is MERGE_BY_KEY but declares no unique_key", ErrValidation, def.Name)
	}
	switch def.ContractMode {
	case ContractDisabled, ContractWarn, ContractStrict:
	default:
		return fmt.Errorf("%w: model %q has unknown contract_mode %q", ErrValidation, def.Name, def.ContractMode)
	}
	return nil
}
