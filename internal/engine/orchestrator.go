package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ruizrica/driftgate/internal/gate"
	"github.com/ruizrica/driftgate/internal/snapshot"
)

const instrumentationName = "github.com/ruizrica/driftgate/internal/engine"

// Options configures an Orchestrator.
type Options struct {
	// Registry resolves gate ids to instances. Required.
	Registry *gate.Registry

	// Store persists run snapshots. Nil disables persistence and
	// baseline resolution.
	Store snapshot.Store

	// GateTimeout applies independently to each gate. Zero disables
	// the per-gate deadline.
	GateTimeout time.Duration

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Orchestrator is the composition root of the engine. Run resolves the
// policy's gate set, fans the gates out through the executor,
// normalizes their outcomes, evaluates the policy verdict, persists a
// snapshot, and returns the complete RunReport.
//
// Only two error classes escape Run: gate.ErrUnknownGate and
// ErrInvalidPolicy, both usage errors raised before any gate executes.
// Everything else is absorbed into per-gate failed results so a run
// always completes with a full report.
type Orchestrator struct {
	registry   *gate.Registry
	executor   *Executor
	aggregator *Aggregator
	evaluator  *Evaluator
	store      snapshot.Store
	logger     *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	runCounter     metric.Int64Counter
	gateCounter    metric.Int64Counter
	timeoutCounter metric.Int64Counter
}

// NewOrchestrator creates an orchestrator from options.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		registry:   opts.Registry,
		executor:   NewExecutor(opts.GateTimeout, logger),
		aggregator: NewAggregator(),
		evaluator:  NewEvaluator(),
		store:      opts.Store,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
	}
	o.initMetrics()
	return o, nil
}

// initMetrics initializes OpenTelemetry counters.
func (o *Orchestrator) initMetrics() {
	var err error

	o.runCounter, err = o.meter.Int64Counter(
		"driftgate.engine.runs_total",
		metric.WithDescription("Total number of orchestrated runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		o.logger.Warn("failed to create run counter", zap.Error(err))
	}

	o.gateCounter, err = o.meter.Int64Counter(
		"driftgate.engine.gate_executions_total",
		metric.WithDescription("Total number of gate executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		o.logger.Warn("failed to create gate counter", zap.Error(err))
	}

	o.timeoutCounter, err = o.meter.Int64Counter(
		"driftgate.engine.gate_timeouts_total",
		metric.WithDescription("Total number of gate timeouts"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		o.logger.Warn("failed to create timeout counter", zap.Error(err))
	}
}

// resolveGateIDs returns the union of required gates and configured
// gates, sorted for deterministic resolution order.
func resolveGateIDs(p *Policy) []gate.ID {
	seen := make(map[gate.ID]struct{})
	for _, id := range p.Aggregation.RequiredGates {
		seen[id] = struct{}{}
	}
	for id := range p.GateConfigs {
		seen[id] = struct{}{}
	}

	ids := make([]gate.ID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Run executes one orchestrated run of the policy's gate set against
// the change described by rc.
func (o *Orchestrator) Run(ctx context.Context, rc *gate.RunContext, p *Policy) (*RunReport, error) {
	ctx, span := o.tracer.Start(ctx, "engine.run")
	defer span.End()

	if err := ValidatePolicy(p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	// Gates see a shallow copy; the caller's RunContext is never
	// mutated and stays reusable across runs.
	run := gate.RunContext{}
	if rc != nil {
		run = *rc
	}
	rc = &run

	span.SetAttributes(
		attribute.String("policy_id", p.ID),
		attribute.String("project_key", rc.ProjectKey),
	)

	ids := resolveGateIDs(p)
	gates := make([]gate.Gate, 0, len(ids))
	for _, id := range ids {
		g, err := o.registry.Get(id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("resolving gate set for policy %s: %w", p.ID, err)
		}
		gates = append(gates, g)
	}

	// Route per-gate policy config and resolve the baseline before any
	// gate launches; gates never touch the store directly. A caller
	// that supplied its own gate configs keeps them.
	if rc.GateConfigs == nil {
		rc.GateConfigs = p.GateConfigs
	}
	if rc.Baseline == nil {
		rc.Baseline = o.loadBaseline(ctx, rc.ProjectKey)
	}

	report := &RunReport{
		RunID:       uuid.New().String(),
		PolicyID:    p.ID,
		ProjectKey:  rc.ProjectKey,
		GateResults: make(map[gate.ID]gate.Result, len(gates)),
		Diagnostics: o.registry.Diagnostics(),
		StartedAt:   time.Now().UTC(),
	}

	outcomes := o.executor.Execute(ctx, gates, rc)

	for _, g := range gates {
		out := outcomes[g.ID()]
		result := o.aggregator.Normalize(g.ID(), g.Name(), out)
		report.GateResults[g.ID()] = result

		if o.gateCounter != nil {
			o.gateCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("gate_id", string(g.ID())),
				attribute.String("status", string(result.Status)),
			))
		}
		if out.TimedOut && o.timeoutCounter != nil {
			o.timeoutCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("gate_id", string(g.ID())),
			))
		}
	}

	report.Overall = o.evaluator.Evaluate(report.GateResults, p)
	report.FinishedAt = time.Now().UTC()

	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("policy_id", p.ID),
			attribute.Bool("passed", report.Overall.Passed),
		))
	}

	o.persist(ctx, report)

	o.logger.Info("run completed",
		zap.String("run_id", report.RunID),
		zap.String("policy_id", p.ID),
		zap.Bool("passed", report.Overall.Passed),
		zap.Int("score", report.Overall.Score),
		zap.Int("gates", len(report.GateResults)),
	)

	span.SetAttributes(
		attribute.Bool("passed", report.Overall.Passed),
		attribute.Int("score", report.Overall.Score),
	)
	return report, nil
}

// loadBaseline fetches the latest snapshot for the project. A missing
// baseline is normal; a store failure degrades to no baseline.
func (o *Orchestrator) loadBaseline(ctx context.Context, projectKey string) *gate.Baseline {
	if o.store == nil || projectKey == "" {
		return nil
	}
	snap, err := o.store.Latest(ctx, projectKey)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNoBaseline) {
			o.logger.Warn("failed to load baseline snapshot",
				zap.String("project_key", projectKey),
				zap.Error(err),
			)
		}
		return nil
	}
	return snap.Baseline()
}

// persist saves the run as a snapshot. Persistence failure never fails
// the run; the report is already complete.
func (o *Orchestrator) persist(ctx context.Context, report *RunReport) {
	if o.store == nil || report.ProjectKey == "" {
		return
	}
	_, err := o.store.Save(ctx, &snapshot.Snapshot{
		ID:         report.RunID,
		ProjectKey: report.ProjectKey,
		PolicyID:   report.PolicyID,
		Overall: snapshot.Overall{
			Passed:  report.Overall.Passed,
			Status:  report.Overall.Status,
			Score:   report.Overall.Score,
			Summary: report.Overall.Summary,
		},
		GateResults: report.GateResults,
		CreatedAt:   report.FinishedAt,
	})
	if err != nil {
		o.logger.Warn("failed to persist run snapshot",
			zap.String("run_id", report.RunID),
			zap.String("project_key", report.ProjectKey),
			zap.Error(err),
		)
	}
}
