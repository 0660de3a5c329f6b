package definition

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
	"gopkg.in/yaml.v3"
)

// Mirror is a read-mostly sqlite projection of the loaded workflow
// definitions, adapted from the teacher's embedded-schema sqlite pattern
// so the admin surface can list/inspect definitions without re-parsing
// YAML on every request. Sync is its only writer.
type Mirror struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS workflow_definitions (
	workflow_id   TEXT PRIMARY KEY,
	start_node    TEXT NOT NULL,
	node_count    INTEGER NOT NULL,
	revision_hash TEXT NOT NULL,
	loaded_at     TEXT NOT NULL
);
`

// OpenMirror opens (creating if needed) the sqlite mirror at path. Use
// "file::memory:?cache=shared" for tests.
func OpenMirror(path string) (*Mirror, error) {
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("definition: open mirror: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("definition: ping mirror: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("definition: create schema: %w", err)
	}
	return &Mirror{conn: conn}, nil
}

// Close closes the underlying sqlite connection.
func (m *Mirror) Close() error {
	return m.conn.Close()
}

// Sync upserts every template definition's metadata into the mirror.
func (m *Mirror) Sync(ctx context.Context, defs []Definition) error {
	for _, def := range defs {
		raw, err := yaml.Marshal(def)
		if err != nil {
			return fmt.Errorf("definition: hash %s: %w", def.WorkflowID, err)
		}
		sum := sha256.Sum256(raw)
		hash := hex.EncodeToString(sum[:])

		_, err = m.conn.ExecContext(ctx, `
			INSERT INTO workflow_definitions (workflow_id, start_node, node_count, revision_hash, loaded_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(workflow_id) DO UPDATE SET
				start_node = excluded.start_node,
				node_count = excluded.node_count,
				revision_hash = excluded.revision_hash,
				loaded_at = excluded.loaded_at
		`, def.WorkflowID, def.StartNode, len(def.NodeList), hash, time.Now().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("definition: sync %s: %w", def.WorkflowID, err)
		}
	}
	return nil
}

// Summary is one row of the admin-facing definition listing.
type Summary struct {
	WorkflowID   string `json:"workflow_id"`
	StartNode    string `json:"start_node"`
	NodeCount    int    `json:"node_count"`
	RevisionHash string `json:"revision_hash"`
	LoadedAt     string `json:"loaded_at"`
}

// List returns every mirrored definition summary, ordered by workflow id.
func (m *Mirror) List(ctx context.Context) ([]Summary, error) {
	rows, err := m.conn.QueryContext(ctx, `
		SELECT workflow_id, start_node, node_count, revision_hash, loaded_at
		FROM workflow_definitions ORDER BY workflow_id
	`)
	if err != nil {
		return nil, fmt.Errorf("definition: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.WorkflowID, &s.StartNode, &s.NodeCount, &s.RevisionHash, &s.LoadedAt); err != nil {
			return nil, fmt.Errorf("definition: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
