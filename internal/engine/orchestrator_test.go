package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizrica/driftgate/internal/gate"
	"github.com/ruizrica/driftgate/internal/snapshot"
)

func registryWith(gates ...*fakeGate) *gate.Registry {
	factories := make(map[gate.ID]gate.Factory, len(gates))
	for _, g := range gates {
		g := g
		factories[g.id] = func() (gate.Gate, error) { return g, nil }
	}
	return gate.NewRegistry(factories, nil)
}

func newTestOrchestrator(t *testing.T, store snapshot.Store, gates ...*fakeGate) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Options{
		Registry:    registryWith(gates...),
		Store:       store,
		GateTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return o
}

func simplePolicy(mode Mode, ids ...gate.ID) *Policy {
	configs := make(map[gate.ID]map[string]any, len(ids))
	for _, id := range ids {
		configs[id] = map[string]any{}
	}
	return &Policy{
		ID:          "test-policy",
		Name:        "Test Policy",
		Aggregation: AggregationConfig{Mode: mode},
		GateConfigs: configs,
	}
}

func TestOrchestrator_Run_FullReport(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		passingGate("a", 90),
		passingGate("b", 70),
	)

	report, err := o.Run(context.Background(), &gate.RunContext{}, simplePolicy(ModeAny, "a", "b"))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "test-policy", report.PolicyID)
	require.Len(t, report.GateResults, 2)
	assert.True(t, report.Overall.Passed)
	assert.Equal(t, 80, report.Overall.Score)
	assert.False(t, report.StartedAt.IsZero())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestOrchestrator_Run_UnknownGateAborts(t *testing.T) {
	o := newTestOrchestrator(t, nil, passingGate("a", 90))

	_, err := o.Run(context.Background(), &gate.RunContext{}, simplePolicy(ModeAny, "a", "ghost"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gate.ErrUnknownGate)
}

func TestOrchestrator_Run_InvalidPolicyAbortsBeforeExecution(t *testing.T) {
	ran := false
	g := &fakeGate{
		id:   "a",
		name: "a",
		run: func(context.Context, *gate.RunContext) (gate.RawOutcome, error) {
			ran = true
			return gate.RawOutcome{"passed": true}, nil
		},
	}
	o := newTestOrchestrator(t, nil, g)

	p := simplePolicy(ModeWeighted, "a")
	p.Aggregation.MinScore = MinScore(-5)

	_, err := o.Run(context.Background(), &gate.RunContext{}, p)
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.False(t, ran)
}

func TestOrchestrator_Run_GateErrorDegradesNotAborts(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		passingGate("healthy", 100),
		&fakeGate{
			id:   "broken",
			name: "broken",
			run: func(context.Context, *gate.RunContext) (gate.RawOutcome, error) {
				return nil, errors.New("internal bug")
			},
		},
	)

	report, err := o.Run(context.Background(), &gate.RunContext{}, simplePolicy(ModeAny, "healthy", "broken"))
	require.NoError(t, err)

	require.Len(t, report.GateResults, 2)
	assert.Equal(t, gate.StatusPassed, report.GateResults["healthy"].Status)
	assert.Equal(t, gate.StatusFailed, report.GateResults["broken"].Status)
	assert.Equal(t, 0, report.GateResults["broken"].Score)
	assert.False(t, report.Overall.Passed)
}

func TestOrchestrator_Run_GateSetIsRequiredUnionConfigured(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		passingGate("required-only", 100),
		passingGate("configured-only", 100),
	)

	p := &Policy{
		ID: "union",
		Aggregation: AggregationConfig{
			Mode:          ModeAny,
			RequiredGates: []gate.ID{"required-only"},
		},
		GateConfigs: map[gate.ID]map[string]any{
			"configured-only": {},
		},
	}

	report, err := o.Run(context.Background(), &gate.RunContext{}, p)
	require.NoError(t, err)

	assert.Len(t, report.GateResults, 2)
	assert.Contains(t, report.GateResults, gate.ID("required-only"))
	assert.Contains(t, report.GateResults, gate.ID("configured-only"))
}

func TestOrchestrator_Run_PersistsSnapshot(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	o := newTestOrchestrator(t, store, passingGate("a", 90))

	rc := &gate.RunContext{ProjectKey: "proj"}
	report, err := o.Run(context.Background(), rc, simplePolicy(ModeAny, "a"))
	require.NoError(t, err)

	snap, err := store.Latest(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, report.RunID, snap.ID)
	assert.Equal(t, report.Overall.Score, snap.Overall.Score)
	assert.Len(t, snap.GateResults, 1)
}

func TestOrchestrator_Run_InjectsBaseline(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	var seen *gate.Baseline
	g := &fakeGate{
		id:   "observer",
		name: "observer",
		run: func(_ context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
			seen = rc.Baseline
			return gate.RawOutcome{"passed": true}, nil
		},
	}
	o := newTestOrchestrator(t, store, g)

	// First run: no baseline.
	_, err = o.Run(context.Background(), &gate.RunContext{ProjectKey: "proj"}, simplePolicy(ModeAny, "observer"))
	require.NoError(t, err)
	assert.Nil(t, seen)

	// Second run sees the first run's snapshot.
	_, err = o.Run(context.Background(), &gate.RunContext{ProjectKey: "proj"}, simplePolicy(ModeAny, "observer"))
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, 100, seen.OverallScore)
}

func TestOrchestrator_Run_DoesNotMutateCallerContext(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	callerConfigs := map[gate.ID]map[string]any{
		"observer": {"marker": true},
	}
	var seen map[string]any
	g := &fakeGate{
		id:   "observer",
		name: "observer",
		run: func(_ context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
			seen = rc.Config("observer")
			return gate.RawOutcome{"passed": true}, nil
		},
	}
	o := newTestOrchestrator(t, store, g)

	rc := &gate.RunContext{ProjectKey: "proj", GateConfigs: callerConfigs}
	_, err = o.Run(context.Background(), rc, simplePolicy(ModeAny, "observer"))
	require.NoError(t, err)

	// Caller-supplied gate configs win over the policy's and reach the
	// gate untouched.
	require.NotNil(t, seen)
	assert.Equal(t, true, seen["marker"])

	// The caller's context is untouched: same config map, and the
	// baseline resolved for the run was not written back.
	_, err = o.Run(context.Background(), rc, simplePolicy(ModeAny, "observer"))
	require.NoError(t, err)
	assert.Equal(t, map[gate.ID]map[string]any{"observer": {"marker": true}}, rc.GateConfigs)
	assert.Nil(t, rc.Baseline)
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		passingGate("a", 80),
		passingGate("b", 60),
	)
	p := simplePolicy(ModeWeighted, "a", "b")

	first, err := o.Run(context.Background(), &gate.RunContext{}, p)
	require.NoError(t, err)
	second, err := o.Run(context.Background(), &gate.RunContext{}, p)
	require.NoError(t, err)

	assert.Equal(t, first.Overall.Passed, second.Overall.Passed)
	assert.Equal(t, first.Overall.Score, second.Overall.Score)
}

func TestNewOrchestrator_RequiresRegistry(t *testing.T) {
	_, err := NewOrchestrator(Options{})
	assert.Error(t, err)
}
