package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"BotFlow/internal/lib/testutil"
)

func TestPostgresStore(t *testing.T) {
	dsn := testutil.StartPostgresContainer(t)
	s, err := OpenPostgres(context.Background(), dsn, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for name, check := range storeChecks {
		t.Run(name, func(t *testing.T) {
			_, err := s.db.Exec(`TRUNCATE sessions, chat_logs, visited_edges, diagnostics, credentials, api_keys`)
			require.NoError(t, err)
			check(t, s)
		})
	}
}
