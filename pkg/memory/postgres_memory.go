package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresMemory stores conversation transcripts in a PostgreSQL table
type PostgresMemory struct {
	db    *sql.DB
	table string
}

// PostgresOption configures a PostgresMemory
type PostgresOption func(*PostgresMemory)

// WithTable overrides the table name (default "chat_messages")
func WithTable(name string) PostgresOption {
	return func(p *PostgresMemory) {
		p.table = name
	}
}

// NewPostgresMemory wraps an open database handle
func NewPostgresMemory(db *sql.DB, options ...PostgresOption) (*PostgresMemory, error) {
	p := &PostgresMemory{db: db, table: "chat_messages"}
	for _, option := range options {
		option(p)
	}
	if !tableNamePattern.MatchString(p.table) {
		return nil, fmt.Errorf("invalid table name %q", p.table)
	}
	return p, nil
}

// NewPostgresMemoryFromURL opens and pings the database, then ensures the schema exists
func NewPostgresMemoryFromURL(ctx context.Context, url string, options ...PostgresOption) (*PostgresMemory, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p, err := NewPostgresMemory(db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := p.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates the transcript table if missing
func (p *PostgresMemory) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (conversation_id, seq)`, pq.QuoteIdentifier(p.table), pq.QuoteIdentifier(p.table+"_conversation_idx"))

	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.table, err)
	}
	return nil
}

// AddMessage inserts a message for the conversation in ctx
func (p *PostgresMemory) AddMessage(ctx context.Context, message interfaces.Message) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	var metadata []byte
	if len(message.Metadata) > 0 {
		if metadata, err = json.Marshal(message.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = p.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, conversation_id, role, content, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)", pq.QuoteIdentifier(p.table)),
		message.ID, id, message.Role, message.Content, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessages returns the conversation's messages in insertion order
func (p *PostgresMemory) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	id, err := conversationID(ctx)
	if err != nil {
		return nil, err
	}

	opts := &interfaces.GetMessagesOptions{}
	for _, option := range options {
		option(opts)
	}

	query := fmt.Sprintf("SELECT id, role, content, metadata, created_at FROM %s WHERE conversation_id = $1", pq.QuoteIdentifier(p.table))
	args := []interface{}{id}
	if len(opts.Roles) > 0 {
		query += " AND role = ANY($2)"
		args = append(args, pq.Array(opts.Roles))
	}
	query += " ORDER BY seq ASC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []interfaces.Message{}
	for rows.Next() {
		var msg interfaces.Message
		var metadata []byte
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return applyOptions(messages, interfaces.WithLimit(opts.Limit)), nil
}

// Clear deletes the conversation's messages
func (p *PostgresMemory) Clear(ctx context.Context) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE conversation_id = $1", pq.QuoteIdentifier(p.table)), id); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// Close closes the database handle
func (p *PostgresMemory) Close() error {
	return p.db.Close()
}
