package managers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/internal/domain"
)

type reconcilerFixture struct {
	schedules   *memScheduleStore
	credentials *memCredentialStore
	beat        *memBeatStore
	graphs      *fakeGraphService
	lifecycle   domain.CredentialLifecycle
	reconciler  domain.Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	schedules := newMemScheduleStore()
	credentials := newMemCredentialStore()
	beat := newMemBeatStore()
	schedules.cascade = beat.removeTaskByScheduleUUID
	graphs := newFakeGraphService("org-1")

	lifecycle := NewCredentialManager(CredentialManagerDependencies{
		Store:    credentials,
		Projects: graphs,
		Cipher:   newTestCipher(),
	})

	backendSync := NewBeatSyncManager(BeatSyncManagerDependencies{
		Store: beat,
		Queue: "workflow-executions",
	})

	reconciler := NewScheduleReconciler(ScheduleReconcilerDependencies{
		Scanner:     graphs,
		Projects:    graphs,
		Schedules:   schedules,
		Sync:        backendSync,
		Credentials: lifecycle,
	})

	return &reconcilerFixture{
		schedules:   schedules,
		credentials: credentials,
		beat:        beat,
		graphs:      graphs,
		lifecycle:   lifecycle,
		reconciler:  reconciler,
	}
}

func (f *reconcilerFixture) reconcile(t *testing.T) domain.ReconciliationReport {
	t.Helper()
	report, err := f.reconciler.ReconcileDeployment(context.Background(), domain.ReconcileDeploymentParams{
		ProjectID: "proj-1",
		GraphID:   "graph-1",
		ActorID:   "deployer",
	})
	require.NoError(t, err)
	return report
}

func TestReconcileDeployment_CreatesScheduleAndCredential(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
	})

	report := f.reconcile(t)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Removed)
	assert.True(t, report.Rotated)
	assert.Empty(t, report.Errors)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0 9 * * *", records[0].CronExpression)
	assert.Equal(t, domain.ScheduleTypeProject, records[0].Type)
	require.NotNil(t, records[0].Binding)
	assert.Equal(t, "node-1", records[0].Binding.NodeInstanceID)

	assert.Equal(t, 1, f.beat.taskCount())

	active, err := f.lifecycle.FindActiveAutomationCredential(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestReconcileDeployment_SecondPassIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
	})

	first := f.reconcile(t)
	require.Equal(t, 1, first.Updated)

	firstActive, err := f.lifecycle.FindActiveAutomationCredential(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, firstActive)

	second := f.reconcile(t)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Removed)
	assert.False(t, second.Rotated)

	secondActive, err := f.lifecycle.FindActiveAutomationCredential(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, secondActive)
	assert.Equal(t, firstActive.ID, secondActive.ID, "unchanged pass must not rotate the credential")
}

func TestReconcileDeployment_ChangedCronUpdatesAndRotates(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
	})
	f.reconcile(t)

	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "30 18 * * *", Timezone: "Europe/Berlin", Enabled: true},
	})
	report := f.reconcile(t)

	assert.Equal(t, 1, report.Updated)
	assert.True(t, report.Rotated)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "30 18 * * *", records[0].CronExpression)
	assert.Equal(t, "Europe/Berlin", records[0].Timezone)

	// Same UUID, so the external task row was updated in place.
	assert.Equal(t, 1, f.beat.taskCount())
}

func TestReconcileDeployment_DisabledTriggerRemovesScheduleAndRevokes(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
	})
	f.reconcile(t)

	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: false},
	})
	report := f.reconcile(t)

	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Removed)
	assert.True(t, report.Revoked)
	assert.False(t, report.Rotated)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Empty(t, records)

	active, err := f.lifecycle.FindActiveAutomationCredential(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestReconcileDeployment_TriggerRemovedFromGraphEntirely(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
	})
	f.reconcile(t)

	// The node is gone from the graph, not merely disabled. No intent matches
	// the record anymore, so the sweep must catch it even though its stored
	// enabled flag is still true.
	f.graphs.setGraph("graph-1", nil)
	report := f.reconcile(t)

	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Removed)
	assert.True(t, report.Revoked)
	assert.False(t, report.Rotated)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Equal(t, 0, f.beat.taskCount())

	active, err := f.lifecycle.FindActiveAutomationCredential(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestReconcileDeployment_SweepSkippedWhileAnyTriggerEnabled(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
		{NodeInstanceID: "node-2", CronExpression: "0 21 * * *", Timezone: "UTC", Enabled: true},
	})
	f.reconcile(t)

	// One trigger remains enabled, so the pass must not sweep the project or
	// touch the credential.
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-2", CronExpression: "0 21 * * *", Timezone: "UTC", Enabled: true},
	})
	report := f.reconcile(t)

	assert.False(t, report.Revoked)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	active, err := f.lifecycle.FindActiveAutomationCredential(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestReconcileDeployment_InvalidCronReportedNotFatal(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-bad", CronExpression: "not a cron", Timezone: "UTC", Enabled: true},
		{NodeInstanceID: "node-good", CronExpression: "15 6 * * *", Timezone: "UTC", Enabled: true},
	})

	report := f.reconcile(t)

	assert.Equal(t, 1, report.Updated)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "node-bad", report.Errors[0].TriggerNodeID)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "15 6 * * *", records[0].CronExpression)
}

func TestReconcileDeployment_DefaultsApplied(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", Enabled: true},
	})

	report := f.reconcile(t)
	require.Equal(t, 1, report.Updated)

	records, err := f.schedules.ListSchedules(context.Background(), domain.ScheduleFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0 9 * * *", records[0].CronExpression)
	assert.Equal(t, "UTC", records[0].Timezone)
	assert.True(t, records[0].Enabled)
}

func TestReconcileDeployment_MultipleTriggersRotateOnce(t *testing.T) {
	f := newReconcilerFixture(t)
	f.graphs.setGraph("graph-1", []domain.TriggerNode{
		{NodeInstanceID: "node-1", CronExpression: "0 9 * * *", Timezone: "UTC", Enabled: true},
		{NodeInstanceID: "node-2", CronExpression: "0 21 * * *", Timezone: "UTC", Enabled: true},
	})

	report := f.reconcile(t)

	assert.Equal(t, 2, report.Updated)
	assert.True(t, report.Rotated)

	// Rotation ran exactly once for the pass: a single active credential and
	// no rotated leftovers beyond it.
	all, err := f.credentials.ListCredentialsByProject(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
