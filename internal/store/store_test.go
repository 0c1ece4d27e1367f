package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens a journal in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDatabaseWithPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_ResumesClock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.BeginRun(ctx, "run-1", "definitions")
	require.NoError(t, err)
	require.NoError(t, s.RecordFailure(ctx, Failure{RunID: "run-1", Kind: "remote", Subject: "a", Operation: "create", Message: "boom"}))
	require.Equal(t, int64(2), s.clock.Current())
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.BeginRun(ctx, "run-2", "metaobjects")
	require.NoError(t, err)
	assert.Equal(t, int64(3), run.StartedSeq)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.BeginRun(ctx, "run-1", "definitions")
	require.NoError(t, err)
	_, err = s.BeginRun(ctx, "run-2", "metaobjects")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, "run-1", RunCompleted, 2))

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "newest first")
	assert.Equal(t, RunRunning, runs[0].Status)
	assert.Zero(t, runs[0].FinishedSeq)

	run, ok, err := s.Run(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, 2, run.Failures)
	assert.Equal(t, int64(3), run.FinishedSeq)

	limited, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, ok, err = s.Run(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, s.FinishRun(ctx, "missing", RunFailed, 0))
}

func TestDefinitionStatesLatestPerType(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.BeginRun(ctx, "run-1", "definitions")
	require.NoError(t, err)

	for _, st := range []DefinitionState{
		{RunID: "run-1", Type: "b", State: "PENDING"},
		{RunID: "run-1", Type: "a", State: "PENDING"},
		{RunID: "run-1", Type: "b", State: "CREATED", DestinationID: "gid://dst/1"},
		{RunID: "run-1", Type: "a", State: "FAILED", Message: "taken"},
		{RunID: "run-1", Type: "b", State: "FIELDS_RECONCILED", DestinationID: "gid://dst/1"},
	} {
		require.NoError(t, s.RecordDefinition(ctx, st))
	}

	states, err := s.DefinitionStates(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].Type)
	assert.Equal(t, "FAILED", states[0].State)
	assert.Equal(t, "taken", states[0].Message)
	assert.Equal(t, "FIELDS_RECONCILED", states[1].State)

	history, err := s.DefinitionHistory(ctx, "run-1", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"PENDING", "CREATED", "FIELDS_RECONCILED"}, history)
}

func TestRecordDefinitionRequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordDefinition(context.Background(), DefinitionState{RunID: "nope", Type: "a", State: "PENDING"})
	assert.Error(t, err, "foreign key enforced")
}

func TestDeferredFields(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.BeginRun(ctx, "run-1", "definitions")
	require.NoError(t, err)

	require.NoError(t, s.RecordDeferredField(ctx, DeferredField{RunID: "run-1", OwnerType: "a", FieldKey: "b", Payload: `{"v":1}`}))
	require.NoError(t, s.RecordDeferredField(ctx, DeferredField{RunID: "run-1", OwnerType: "a", FieldKey: "b", Payload: `{"v":2}`}))
	require.NoError(t, s.RecordDeferredField(ctx, DeferredField{RunID: "run-1", OwnerType: "c", FieldKey: "d", Payload: `{}`}))
	require.NoError(t, s.MarkDeferredReconciled(ctx, "run-1", "c", "d"))

	fields, err := s.DeferredFields(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, `{"v":2}`, fields[0].Payload)
	assert.False(t, fields[0].Reconciled)
	assert.True(t, fields[1].Reconciled)
}

func TestFailuresInOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.BeginRun(ctx, "run-1", "metaobjects")
	require.NoError(t, err)

	require.NoError(t, s.RecordFailure(ctx, Failure{RunID: "run-1", Kind: "resolution", Subject: "Size/us-9", Operation: "resolve", Message: "x"}))
	require.NoError(t, s.RecordFailure(ctx, Failure{RunID: "run-1", Kind: "remote", Subject: "Size/us-10", Operation: "upsert", Message: "y"}))

	failures, err := s.Failures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "Size/us-9", failures[0].Subject)
	assert.Less(t, failures[0].Seq, failures[1].Seq)
}

func TestUpsertHashReplaced(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.BeginRun(ctx, "run-1", "metaobjects")
	require.NoError(t, err)

	_, ok, err := s.LastUpsertHash(ctx, "Size", "us-9")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordUpsert(ctx, Upsert{Type: "Size", Handle: "us-9", PayloadHash: "h1", RunID: "run-1"}))
	require.NoError(t, s.RecordUpsert(ctx, Upsert{Type: "Size", Handle: "us-9", PayloadHash: "h2", RunID: "run-1"}))

	hash, ok, err := s.LastUpsertHash(ctx, "Size", "us-9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "h2", hash)
}
