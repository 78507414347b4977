// Package history keeps a durable record of completed exchanges in Postgres.
// Session memory stays bounded; history is the long-term audit view.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/addanuj/mcp-client/internal/memory"
	"github.com/addanuj/mcp-client/pkg/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS mcp_exchanges (
	id           UUID PRIMARY KEY,
	session_id   TEXT NOT NULL,
	user_message TEXT NOT NULL,
	response     TEXT NOT NULL,
	failed       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS mcp_exchanges_session_idx ON mcp_exchanges (session_id, created_at);
CREATE TABLE IF NOT EXISTS mcp_tool_invocations (
	id          UUID PRIMARY KEY,
	exchange_id UUID NOT NULL REFERENCES mcp_exchanges (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	tool        TEXT NOT NULL,
	server      TEXT NOT NULL DEFAULT '',
	arguments   JSONB NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	error_kind  TEXT NOT NULL DEFAULT '',
	attempts    INTEGER NOT NULL DEFAULT 0,
	cached      BOOLEAN NOT NULL DEFAULT FALSE,
	duration_ms BIGINT NOT NULL DEFAULT 0
);`

// Store writes exchanges to Postgres.
type Store struct {
	db  database.PostgresConn
	now func() time.Time
}

func NewStore(db database.PostgresConn) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the history tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record stores one exchange and its invocations in a single transaction.
func (s *Store) Record(ctx context.Context, sessionID string, exchange memory.Exchange) error {
	createdAt := exchange.Timestamp
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	exchangeID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mcp_exchanges (id, session_id, user_message, response, failed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		exchangeID, sessionID, exchange.UserMessage, exchange.Response, exchange.Failed, createdAt,
	); err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}

	for i, inv := range exchange.Invocations {
		args := inv.Arguments
		if len(args) == 0 || !json.Valid(args) {
			args = json.RawMessage("{}")
		}
		id := inv.ID
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mcp_tool_invocations
				(id, exchange_id, position, tool, server, arguments, status, error, error_kind, attempts, cached, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			id, exchangeID, i, inv.Tool, inv.Server, string(args), string(inv.Status),
			inv.Error, inv.ErrorKind, inv.Attempts, inv.Cached, inv.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert invocation %s: %w", inv.Tool, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges for the session, oldest first.
// Invocation results are not stored and come back empty.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]memory.Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_message, response, failed, created_at
		FROM (
			SELECT id, user_message, response, failed, created_at
			FROM mcp_exchanges
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var (
		out   []memory.Exchange
		ids   []string
		index = make(map[string]int)
	)
	for rows.Next() {
		var id string
		var ex memory.Exchange
		if err := rows.Scan(&id, &ex.UserMessage, &ex.Response, &ex.Failed, &ex.Timestamp); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		index[id] = len(out)
		ids = append(ids, id)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		invocations, err := s.invocations(ctx, id)
		if err != nil {
			return nil, err
		}
		out[index[id]].Invocations = invocations
	}
	return out, nil
}

func (s *Store) invocations(ctx context.Context, exchangeID string) ([]memory.ToolInvocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, server, arguments, status, error, error_kind, attempts, cached, duration_ms
		FROM mcp_tool_invocations
		WHERE exchange_id = $1
		ORDER BY position`, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []memory.ToolInvocation
	for rows.Next() {
		var (
			inv        memory.ToolInvocation
			args       []byte
			status     string
			durationMs int64
		)
		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.Server, &args, &status, &inv.Error, &inv.ErrorKind, &inv.Attempts, &inv.Cached, &durationMs); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.Arguments = json.RawMessage(args)
		inv.Status = memory.InvocationStatus(status)
		inv.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
