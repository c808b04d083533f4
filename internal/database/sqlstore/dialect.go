package sqlstore

import (
	"strconv"
	"strings"
)

type dialect struct {
	name   string
	driver string
	serial string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = dialect{
		name:     "postgres",
		driver:   "pgx",
		serial:   "BIGSERIAL PRIMARY KEY",
		numbered: true,
	}
)

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			input TEXT,
			client_side_actions TEXT,
			client_id TEXT,
			phone TEXT,
			current_block_id TEXT,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_channel ON sessions (client_id, phone, updated_at)`,
		`CREATE TABLE IF NOT EXISTS chat_logs (
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT NOT NULL,
			details TEXT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS visited_edges (
			session_id TEXT NOT NULL,
			result_id TEXT,
			edge_id TEXT NOT NULL,
			edge_index INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			seq ` + d.serial + `,
			session_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			username TEXT PRIMARY KEY,
			api_key TEXT NOT NULL UNIQUE
		)`,
	}
}
