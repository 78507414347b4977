package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addanuj/mcp-client/internal/memory"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func sampleExchange() memory.Exchange {
	return memory.Exchange{
		UserMessage: "show me the top 10 offenses",
		Response:    "| Id |\n| --- |\n| 1 |",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Invocations: []memory.ToolInvocation{
			{
				ID:        "7b0f3a52-3c1a-4d53-9d0e-6f7c2f1c9a11",
				Tool:      "get_offenses",
				Server:    "qradar",
				Arguments: json.RawMessage(`{"limit":10}`),
				Status:    memory.StatusSuccess,
				Attempts:  1,
				Duration:  250 * time.Millisecond,
			},
			{
				ID:        "not-a-uuid",
				Tool:      "get_log_sources",
				Status:    memory.StatusError,
				Error:     "timed out",
				ErrorKind: "timeout",
				Attempts:  3,
			},
		},
	}
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mcp_exchanges").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordWritesExchangeAndInvocations(t *testing.T) {
	store, mock := newMock(t)
	ex := sampleExchange()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mcp_exchanges").
		WithArgs(sqlmock.AnyArg(), "s1", ex.UserMessage, ex.Response, false, ex.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mcp_tool_invocations").
		WithArgs(ex.Invocations[0].ID, sqlmock.AnyArg(), 0, "get_offenses", "qradar", `{"limit":10}`, "success", "", "", 1, false, int64(250)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mcp_tool_invocations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "get_log_sources", "", "{}", "error", "timed out", "timeout", 3, false, int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Record(context.Background(), "s1", ex))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRollsBackOnFailure(t *testing.T) {
	store, mock := newMock(t)
	ex := sampleExchange()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mcp_exchanges").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO mcp_tool_invocations").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Record(context.Background(), "s1", ex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_offenses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentLoadsOldestFirst(t *testing.T) {
	store, mock := newMock(t)
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	mock.ExpectQuery("SELECT id, user_message, response, failed, created_at").
		WithArgs("s1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_message", "response", "failed", "created_at"}).
			AddRow("e1", "first", "one", false, t1).
			AddRow("e2", "second", "two", true, t2))
	mock.ExpectQuery("SELECT id, tool, server, arguments").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tool", "server", "arguments", "status", "error", "error_kind", "attempts", "cached", "duration_ms"}).
			AddRow("i1", "get_offenses", "qradar", []byte(`{"limit":10}`), "success", "", "", 1, true, int64(40)))
	mock.ExpectQuery("SELECT id, tool, server, arguments").
		WithArgs("e2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tool", "server", "arguments", "status", "error", "error_kind", "attempts", "cached", "duration_ms"}))

	got, err := store.Recent(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].UserMessage)
	assert.True(t, got[1].Failed)
	require.Len(t, got[0].Invocations, 1)
	inv := got[0].Invocations[0]
	assert.Equal(t, memory.StatusSuccess, inv.Status)
	assert.True(t, inv.Cached)
	assert.Equal(t, 40*time.Millisecond, inv.Duration)
	assert.JSONEq(t, `{"limit":10}`, string(inv.Arguments))
	assert.Empty(t, got[1].Invocations)
	assert.NoError(t, mock.ExpectationsWereMet())
}
