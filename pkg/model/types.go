// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the canonical ModelDefinition and loads it from a
// directory tree of SQL files carrying metadata headers.
package model

import "ironlayer/pkg/sqltoolkit"

// Kind is the materialization strategy a model declares.
type Kind string

const (
	KindFullRefresh            Kind = "FULL_REFRESH"
	KindIncrementalByTimeRange Kind = "INCREMENTAL_BY_TIME_RANGE"
	KindMergeByKey             Kind = "MERGE_BY_KEY"
	KindView                   Kind = "VIEW"
)

// Materialization is the physical form a model takes in the warehouse.
type Materialization string

const (
	MaterializationTable           Materialization = "TABLE"
	MaterializationView            Materialization = "VIEW"
	MaterializationInsertOverwrite Materialization = "INSERT_OVERWRITE"
	MaterializationMerge           Materialization = "MERGE"
)

// ContractMode controls how seriously a schema contract violation is taken.
type ContractMode string

const (
	ContractDisabled ContractMode = "DISABLED"
	ContractWarn     ContractMode = "WARN"
	ContractStrict   ContractMode = "STRICT"
)

// ContractColumn is one expected column in a model's schema contract.
type ContractColumn struct {
	Name     string
	DataType string
	Nullable bool
}

// ContractViolationKind classifies a detected contract mismatch.
type ContractViolationKind string

const (
	ContractViolationMissingColumn     ContractViolationKind = "missing_column"
	ContractViolationExtraColumn       ContractViolationKind = "extra_column"
	ContractViolationTypeMismatch      ContractViolationKind = "type_mismatch"
	ContractViolationNullableTightened ContractViolationKind = "nullable_tightened"
)

// ContractViolation describes one contract mismatch found for a model.
type ContractViolation struct {
	Model    string
	Column   string
	Kind     ContractViolationKind
	Detail   string
	Severity sqltoolkit.ViolationSeverity
}

// Definition is the canonical, fully-resolved representation of one model.
type Definition struct {
	Name            string
	Kind            Kind
	Materialization Materialization
	TimeColumn      string
	UniqueKey       string
	PartitionBy     string
	IncrementalStrategy string
	Owner           string
	Tags            []string

	RawSQL   string
	CleanSQL string

	ContentHash string

	Dependencies []string

	ContractMode    ContractMode
	ContractColumns []ContractColumn

	// OutputColumns is the model's output column set as statically derived
	// from CleanSQL by the toolkit's scope analyzer. Used as the default
	// "actual" column set for contract checking when no warehouse-sourced
	// schema probe is available.
	OutputColumns []string

	SourceFile string
}
