// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"ironlayer/pkg/advisory"
	"ironlayer/pkg/authz"
	"ironlayer/pkg/backfill"
	"ironlayer/pkg/cperrors"
	"ironlayer/pkg/config"
	"ironlayer/pkg/executor"
	"ironlayer/pkg/lock"
	"ironlayer/pkg/logging"
	"ironlayer/pkg/model"
	"ironlayer/pkg/orchestrator"
	"ironlayer/pkg/reconcile"
	"ironlayer/pkg/sqltoolkit"
	"ironlayer/pkg/state"

	auditsvc "ironlayer/pkg/audit"
)

// App bundles the configuration and connections a command needs once it
// has resolved its global flags. Every subcommand constructs one, uses it,
// and closes it before returning.
type App struct {
	Config   *config.Config
	Log      logging.Logger
	Pool     *pgxpool.Pool
	TenantID string
}

// newApp loads config, opens the database pool, and builds the logger. The
// caller must call Close when done.
func newApp(ctx context.Context, cmd *cobra.Command) (*App, error) {
	flags := ResolveFlags(cmd)

	cfg, err := config.Load(flags.Config)
	if err != nil {
		if err == config.ErrConfigNotFound {
			return nil, fmt.Errorf("ironlayer config not found at %s", flags.Config)
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.NewLogger(flags.Verbose)

	pool, err := state.NewPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := state.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring database schema: %w", err)
	}

	return &App{Config: cfg, Log: log, Pool: pool, TenantID: cfg.Project.TenantID}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

// loadModels parses every *.sql file under dir into a ModelDefinition map.
func (a *App) loadModels(dir string) (map[string]*model.Definition, error) {
	loader := model.NewLoader(a.Log, sqltoolkit.Get(), a.Config.Dialect())
	defs, err := loader.LoadDirectory(".", os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("loading models from %s: %w", dir, err)
	}
	return defs, nil
}

// directoryModelSource adapts a loaded model map to orchestrator.ModelSource.
type directoryModelSource struct {
	defs map[string]*model.Definition
}

func (m directoryModelSource) SQLFor(name string) (string, error) {
	def, ok := m.defs[name]
	if !ok {
		return "", fmt.Errorf("%w: model %q not present in the loaded model set", cperrors.ErrNotFound, name)
	}
	return def.CleanSQL, nil
}

// orchestrator builds an Orchestrator wired against the app's database pool
// and the given model set (the source of each step's SQL body).
func (a *App) orchestrator(defs map[string]*model.Definition) *orchestrator.Orchestrator {
	auditLog := state.NewAuditLogRepository(a.Pool, a.TenantID)
	locks := lock.NewManager(state.NewLockRepository(a.Pool, a.TenantID), auditLog)
	runner := state.SQLRunner{Q: a.Pool}

	rates := orchestrator.ClusterRates(a.Config.ClusterRate)

	return orchestrator.New(
		a.Log,
		state.NewRunRepository(a.Pool, a.TenantID),
		state.NewWatermarkRepository(a.Pool, a.TenantID),
		state.NewPlanRepository(a.Pool, a.TenantID),
		state.NewTelemetryRepository(a.Pool, a.TenantID),
		locks,
		directoryModelSource{defs: defs},
		executor.NewLocal(a.Log, runner, sqltoolkit.Get(), a.Config.Dialect()),
		executor.NewWarehouse(defaultClusterSize),
		advisory.Noop{},
		rates,
	)
}

// defaultClusterSize is the cluster size the warehouse executor names in
// its "not configured" message; it reports this size for every step,
// whatever cluster size override the step carries.
const defaultClusterSize = "small"

func (a *App) backfillEngine(o *orchestrator.Orchestrator) *backfill.Engine {
	return backfill.NewEngine(
		a.Log,
		o,
		state.NewBackfillCheckpointRepository(a.Pool, a.TenantID),
		state.NewBackfillAuditRepository(a.Pool, a.TenantID),
	)
}

func (a *App) reconcileService() *reconcile.Service {
	return reconcile.NewService(state.NewReconciliationRepository(a.Pool, a.TenantID))
}

func (a *App) auditService() *auditsvc.Service {
	return auditsvc.NewService(state.NewAuditLogRepository(a.Pool, a.TenantID))
}

// callerRole parses a --role flag value into an authz.Role, defaulting to
// viewer (the least privileged role) for anything unrecognized.
func callerRole(value string) authz.Role {
	switch value {
	case string(authz.RoleAdmin):
		return authz.RoleAdmin
	case string(authz.RoleDev):
		return authz.RoleDev
	default:
		return authz.RoleViewer
	}
}
