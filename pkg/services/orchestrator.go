package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/discovery"
	"github.com/kitchensight/analytics-engine/pkg/graph"
	"github.com/kitchensight/analytics-engine/pkg/logging"
	"github.com/kitchensight/analytics-engine/pkg/models"
	"github.com/kitchensight/analytics-engine/pkg/repositories"
	"github.com/kitchensight/analytics-engine/pkg/retry"
	"github.com/kitchensight/analytics-engine/pkg/templates"
)

const skipReasonCancelled = "run cancelled"

// backfillGroupTables is the graph subset the backfill-groups mode refreshes:
// the product-group definitions plus every cube derived from them.
var backfillGroupTables = map[string]bool{
	"product_group_definitions":   true,
	"daily_location_group_mix":    true,
	"daily_fleet_group_mix":       true,
	"location_group_mix_trailing": true,
}

// Orchestrator drives one refresh run across the table graph.
type Orchestrator interface {
	// Run executes one refresh of the graph and returns the per-table
	// outcome. Configuration-class errors (cycle, tier ordering, render
	// failure) return before any table executes.
	Run(ctx context.Context, mode models.RefreshMode, dateRange models.DateRange) (*models.RunSummary, error)
}

// OrchestratorConfig carries the orchestration knobs.
type OrchestratorConfig struct {
	Workers      int
	TableTimeout time.Duration
	RunTimeout   time.Duration
	TargetSchema string
	Retry        *retry.Config
}

type orchestrator struct {
	store    *templates.Store
	executor database.Executor
	gate     discovery.Gate
	log      repositories.RefreshLogRepository
	cfg      OrchestratorConfig
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewOrchestrator creates a refresh orchestrator.
func NewOrchestrator(
	store *templates.Store,
	executor database.Executor,
	gate discovery.Gate,
	log repositories.RefreshLogRepository,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}
	return &orchestrator{
		store:    store,
		executor: executor,
		gate:     gate,
		log:      log,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
	}
}

// tableState tracks one table through Pending -> Running -> terminal.
type tableState struct {
	status     models.TableStatus
	skipReason string
}

// runState is the mutable bookkeeping of one graph traversal. The mutex is
// the sole synchronization point between the scheduler loop and workers.
type runState struct {
	mu     sync.Mutex
	cond   *sync.Cond
	states map[string]*tableState
}

func newRunState(order []string) *runState {
	rs := &runState{states: make(map[string]*tableState, len(order))}
	rs.cond = sync.NewCond(&rs.mu)
	for _, name := range order {
		rs.states[name] = &tableState{status: models.TableStatusPending}
	}
	return rs
}

func (o *orchestrator) Run(ctx context.Context, mode models.RefreshMode, dateRange models.DateRange) (*models.RunSummary, error) {
	// Discovery probes the source without materializing anything; it has its
	// own service and must never reach the graph.
	if mode == models.ModeDiscover {
		return nil, fmt.Errorf("mode %s does not materialize tables", mode)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, apperrors.ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	run := models.NewRefreshRun(mode, dateRange)
	logger := o.logger.With(
		zap.String("runID", run.ID.String()),
		zap.String("mode", string(mode)))

	plan, err := o.prepare(run)
	if err != nil {
		return nil, err
	}
	rendered, err := o.renderAll(plan, run)
	if err != nil {
		return nil, err
	}

	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	logger.Info("Starting refresh run",
		zap.Int("tables", len(plan.Order)),
		zap.Int("workers", o.cfg.Workers))

	state := newRunState(plan.Order)
	o.execute(ctx, run, plan, rendered, state, logger)

	summary := o.summarize(run, plan, state)
	logger.Info("Refresh run finished",
		zap.Int("completed", len(summary.Completed)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int64("durationMs", summary.DurationMs))
	return summary, nil
}

// prepare builds the execution plan for the run's mode. Graph construction
// validates cycles and tier ordering before anything touches the warehouse.
func (o *orchestrator) prepare(run *models.RefreshRun) (*graph.Plan, error) {
	defs := o.store.Definitions()
	if run.Mode == models.ModeBackfillGroups {
		subset := make([]models.TableDefinition, 0, len(backfillGroupTables))
		for _, def := range defs {
			if backfillGroupTables[def.Name] {
				subset = append(subset, def)
			}
		}
		defs = subset
	}
	plan, err := graph.Build(defs)
	if err != nil {
		return nil, fmt.Errorf("refusing to run: %w", err)
	}
	return plan, nil
}

// renderAll renders every scheduled template up front so a malformed
// template aborts the run before any table executes.
func (o *orchestrator) renderAll(plan *graph.Plan, run *models.RefreshRun) (map[string]*templates.RenderedQuery, error) {
	rendered := make(map[string]*templates.RenderedQuery, len(plan.Order))
	for _, name := range plan.Order {
		q, err := o.store.Render(name, run.Mode, run.Range)
		if err != nil {
			return nil, fmt.Errorf("refusing to run: %w", err)
		}
		rendered[name] = q
	}
	return rendered, nil
}

// execute walks the graph with a bounded worker pool. A table starts as soon
// as all of its upstreams are terminal and a slot frees; the skip decision is
// made at scheduling time, so failure in one branch never stalls another.
func (o *orchestrator) execute(
	ctx context.Context,
	run *models.RefreshRun,
	plan *graph.Plan,
	rendered map[string]*templates.RenderedQuery,
	state *runState,
	logger *zap.Logger,
) {
	slots := make(chan struct{}, o.cfg.Workers)
	var wg sync.WaitGroup

	for _, name := range plan.Order {
		upstreams := plan.Upstreams(name)

		state.mu.Lock()
		for !o.upstreamsTerminal(state, upstreams) && ctx.Err() == nil {
			state.cond.Wait()
		}

		if ctx.Err() != nil {
			o.markSkipped(state, name, skipReasonCancelled, run, logger)
			state.mu.Unlock()
			continue
		}

		if blocked, ok := o.blockedUpstream(state, upstreams); ok {
			reason := fmt.Sprintf("upstream %s did not succeed", blocked)
			o.markSkipped(state, name, reason, run, logger)
			state.mu.Unlock()
			continue
		}

		state.mu.Unlock()

		// Acquire the slot before marking Running: a cancel that lands
		// while this table queues for a worker skips it cleanly instead
		// of cutting it off mid-flight.
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			state.mu.Lock()
			o.markSkipped(state, name, skipReasonCancelled, run, logger)
			state.mu.Unlock()
			continue
		}

		state.mu.Lock()
		state.states[name].status = models.TableStatusRunning
		state.mu.Unlock()

		def, _ := plan.Definition(name)

		wg.Add(1)
		go func(table string, def models.TableDefinition) {
			defer wg.Done()
			defer func() { <-slots }()

			status := o.runTable(ctx, run, def, rendered[table], logger)

			state.mu.Lock()
			state.states[table].status = status
			state.cond.Broadcast()
			state.mu.Unlock()
		}(name, *def)
	}

	wg.Wait()
}

// upstreamsTerminal requires state.mu held.
func (o *orchestrator) upstreamsTerminal(state *runState, upstreams []string) bool {
	for _, up := range upstreams {
		st, ok := state.states[up]
		if !ok {
			// Upstream outside the scheduled subset; treat as satisfied.
			continue
		}
		if !st.status.IsTerminal() {
			return false
		}
	}
	return true
}

// blockedUpstream requires state.mu held. It returns the first upstream that
// finished without success.
func (o *orchestrator) blockedUpstream(state *runState, upstreams []string) (string, bool) {
	for _, up := range upstreams {
		st, ok := state.states[up]
		if !ok {
			continue
		}
		if st.status == models.TableStatusFailed || st.status == models.TableStatusSkipped {
			return up, true
		}
	}
	return "", false
}

// markSkipped requires state.mu held. The audit row is written outside the
// run context so cancellation cannot lose the trail.
func (o *orchestrator) markSkipped(state *runState, table, reason string, run *models.RefreshRun, logger *zap.Logger) {
	state.states[table].status = models.TableStatusSkipped
	state.states[table].skipReason = reason
	state.cond.Broadcast()

	logger.Warn("Skipping table", zap.String("table", table), zap.String("reason", reason))
	entry := &models.RefreshLogEntry{RunID: run.ID, TableName: table, Mode: run.Mode}
	if err := o.log.Skipped(context.Background(), entry, reason); err != nil {
		logger.Error("Failed to record skip", zap.String("table", table), zap.Error(err))
	}
}

// runTable executes one table's statements and closes its audit row. The
// returned status is what the scheduler records; every path through here
// leaves exactly one finished refresh_log row.
//
// The run context governs scheduling only: once a table is Running it runs to
// completion under its own per-table timeout, so cancellation never leaves a
// half-written relation between a template's DELETE and INSERT.
func (o *orchestrator) runTable(
	ctx context.Context,
	run *models.RefreshRun,
	def models.TableDefinition,
	query *templates.RenderedQuery,
	logger *zap.Logger,
) models.TableStatus {
	ctx = context.WithoutCancel(ctx)
	tableLogger := logger.With(zap.String("table", def.Name))

	entry := &models.RefreshLogEntry{
		RunID:     run.ID,
		TableName: def.Name,
		Mode:      run.Mode,
		StartedAt: time.Now().UTC(),
	}
	logID, err := o.log.Start(ctx, entry)
	if err != nil {
		tableLogger.Error("Failed to open audit row", zap.Error(err))
		return models.TableStatusFailed
	}

	status, rowCount, errMsg := o.materialize(ctx, def, query, tableLogger)

	// The audit row closes even when the run context is already cancelled.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.log.Finish(finishCtx, logID, status, rowCount, errMsg); err != nil {
		tableLogger.Error("Failed to close audit row", zap.Error(err))
	}
	return status
}

// materialize runs the gate decision and the rendered statements.
func (o *orchestrator) materialize(
	ctx context.Context,
	def models.TableDefinition,
	query *templates.RenderedQuery,
	logger *zap.Logger,
) (models.TableStatus, *int64, *string) {
	decision, err := o.gate.ShouldPopulate(ctx, def)
	if err != nil {
		msg := logging.SanitizeError(err)
		logger.Error("Discovery gate failed", zap.String("error", msg))
		return models.TableStatusFailed, nil, &msg
	}

	statements := query.Statements
	if decision == models.SchemaOnly {
		statements = query.SchemaStatements()
		logger.Info("Populating schema only, source has no qualifying data")
	}

	if o.cfg.TableTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TableTimeout)
		defer cancel()
	}

	start := time.Now()
	for _, stmt := range statements {
		stmt := stmt
		err := retry.Do(ctx, o.cfg.Retry, func() error {
			return o.executor.Exec(ctx, stmt)
		})
		if err == nil {
			continue
		}
		if apperrors.IsPermission(err) && decision == models.SchemaOnly {
			// A read-only credential cannot create relations; in a
			// schema-only context that is reported, not fatal.
			msg := logging.SanitizeError(err)
			logger.Warn("Permission denied on schema statement, continuing", zap.String("error", msg))
			zero := int64(0)
			return models.TableStatusSuccess, &zero, &msg
		}
		msg := logging.SanitizeError(err)
		logger.Error("Table materialization failed",
			zap.String("error", msg),
			zap.Duration("elapsed", time.Since(start)))
		return models.TableStatusFailed, nil, &msg
	}

	var rowCount int64
	if decision == models.Populate {
		qualified := o.cfg.TargetSchema + "." + def.Name
		rowCount, err = o.executor.CountRows(ctx, qualified)
		if err != nil {
			// The materialization itself succeeded; a failed count
			// only costs the audit detail.
			logger.Warn("Failed to count rows", zap.Error(err))
		}
	}

	logger.Info("Table materialized",
		zap.String("decision", decision.String()),
		zap.Int64("rows", rowCount),
		zap.Duration("elapsed", time.Since(start)))
	return models.TableStatusSuccess, &rowCount, nil
}

func (o *orchestrator) summarize(run *models.RefreshRun, plan *graph.Plan, state *runState) *models.RunSummary {
	summary := &models.RunSummary{
		RunID:      run.ID,
		Mode:       run.Mode,
		DurationMs: time.Since(run.StartedAt).Milliseconds(),
	}
	for _, name := range plan.Order {
		switch state.states[name].status {
		case models.TableStatusSuccess:
			summary.Completed = append(summary.Completed, name)
		case models.TableStatusFailed:
			summary.Failed = append(summary.Failed, name)
		case models.TableStatusSkipped:
			summary.Skipped = append(summary.Skipped, name)
		}
	}
	return summary
}
