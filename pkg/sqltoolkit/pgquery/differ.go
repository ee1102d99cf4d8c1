// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"

	"ironlayer/pkg/sqltoolkit"
)

type differ struct{}

// Diff normalizes both sides and, if they are textually identical after
// normalization, reports a cosmetic-only diff. Otherwise it reports a
// single coarse-grained "update" edit covering the whole statement:
// pg_query_go has no tree-edit-distance algorithm exposed, so rather than
// fabricate a misleading fine-grained edit script this reports the
// statement-level change plus the column-level detail
// ExtractColumnChanges already provides.
func (d differ) Diff(oldSQL, newSQL string, dialect sqltoolkit.Dialect) (sqltoolkit.AstDiffResult, error) {
	norm := normalizer{}
	oldNorm, err := norm.Normalize(oldSQL, dialect, "")
	if err != nil {
		return sqltoolkit.AstDiffResult{}, err
	}
	newNorm, err := norm.Normalize(newSQL, dialect, "")
	if err != nil {
		return sqltoolkit.AstDiffResult{}, err
	}

	if oldNorm.NormalizedSQL == newNorm.NormalizedSQL {
		return sqltoolkit.AstDiffResult{IsIdentical: true, IsCosmeticOnly: true}, nil
	}
	if oldSQL == newSQL {
		return sqltoolkit.AstDiffResult{IsIdentical: true}, nil
	}

	return sqltoolkit.AstDiffResult{
		Edits: []sqltoolkit.DiffEdit{
			{Kind: sqltoolkit.DiffUpdate, SourceSQL: oldNorm.NormalizedSQL, TargetSQL: newNorm.NormalizedSQL},
		},
	}, nil
}

func (d differ) ExtractColumnChanges(oldSQL, newSQL string, dialect sqltoolkit.Dialect) (map[string]string, error) {
	scope := scopeAnalyzer{}
	oldCols, err := scope.ExtractColumns(oldSQL, dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting old columns: %v", sqltoolkit.ErrParse, err)
	}
	newCols, err := scope.ExtractColumns(newSQL, dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting new columns: %v", sqltoolkit.ErrParse, err)
	}

	oldSet := toSet(oldCols.OutputColumns)
	newSet := toSet(newCols.OutputColumns)

	changes := make(map[string]string)
	for col := range newSet {
		if _, ok := oldSet[col]; !ok {
			changes[col] = "added"
		}
	}
	for col := range oldSet {
		if _, ok := newSet[col]; !ok {
			changes[col] = "removed"
		}
	}
	return changes, nil
}

func toSet(cols []string) map[string]struct{} {
	out := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		out[c] = struct{}{}
	}
	return out
}
