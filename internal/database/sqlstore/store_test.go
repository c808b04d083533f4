package sqlstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BotFlow/entity"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:", discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func state(id, block string) *entity.SessionState {
	return &entity.SessionState{
		SessionID:         id,
		CurrentBlockID:    block,
		TypebotsQueue:     []entity.TypebotInQueue{},
		WhatsappComponent: &entity.WhatsappComponent{ClientID: "o_1", Phone: "5511"},
	}
}

func checkSaveAndLoadSession(t *testing.T, s *Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, entity.SessionRecord{ID: "s1", State: state("s1", "b1")}, nil,
		[]entity.ChatLog{{Status: "error", Description: "webhook failed"}}, nil,
		[]entity.VisitedEdge{{EdgeID: "e1"}, {EdgeID: "e2", Index: 1}}))
	require.NoError(t, s.SaveSession(ctx, entity.SessionRecord{ID: "s1", State: state("s1", "b2")},
		&entity.Input{ID: "in", Type: entity.ChoiceInput, Items: []entity.InputItem{{ID: "a", Content: "A"}}}, nil, nil, nil))

	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b2", got.State.CurrentBlockID)
	assert.Equal(t, "in", got.Input.ID)
	assert.Empty(t, got.ClientSideActions)
	assert.WithinDuration(t, time.Now(), got.UpdatedAt, time.Minute)

	var logs, edges int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM chat_logs WHERE session_id = 's1'`).Scan(&logs))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM visited_edges WHERE session_id = 's1'`).Scan(&edges))
	assert.Equal(t, 1, logs)
	assert.Equal(t, 2, edges)

	missing, err := s.LoadSession(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func checkFindSessionByChannel(t *testing.T, s *Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, entity.SessionRecord{ID: "old", State: state("old", "b1")}, nil, nil, nil, nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.SaveSession(ctx, entity.SessionRecord{ID: "new", State: state("new", "b1")}, nil, nil, nil, nil))

	got, err := s.FindSessionByChannel(ctx, "o_1", "5511")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)

	none, err := s.FindSessionByChannel(ctx, "o_9", "5511")
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func checkDiagnostics(t *testing.T, s *Store) {
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	require.NoError(t, s.SaveDiagnostic(ctx, entity.Diagnostic{SessionID: "s1", ItemID: "first", Kind: entity.DiagnosticConversion, CreatedAt: base}))
	require.NoError(t, s.SaveDiagnostic(ctx, entity.Diagnostic{SessionID: "s1", ItemID: "second", Kind: entity.DiagnosticDispatch, Status: 502, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.SaveDiagnostic(ctx, entity.Diagnostic{SessionID: "s2", ItemID: "other", CreatedAt: base}))

	list, err := s.ListDiagnostics(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].ItemID)
	assert.Equal(t, 502, list[0].Status)

	all, err := s.ListDiagnostics(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func checkCredentialsAndApiKeys(t *testing.T, s *Store) {
	ctx := context.Background()

	c := &entity.WhatsappCredentials{ID: "o_1", Type: entity.CredentialsTypeWhatsapp}
	c.Data.ClientID = "o_1"
	c.Data.PhoneNumber = "5511999990000"
	require.NoError(t, s.SaveCredentials(ctx, c))
	got, err := s.GetCredentials(ctx, "o_1")
	require.NoError(t, err)
	assert.Equal(t, c.Data, got.Data)
	assert.Error(t, s.SaveCredentials(ctx, &entity.WhatsappCredentials{ID: "x"}))

	key, err := s.GenerateApiKey("ops")
	require.NoError(t, err)
	again, err := s.GenerateApiKey("ops")
	require.NoError(t, err)
	assert.Equal(t, key, again)

	user, err := s.CheckApiKey(key)
	require.NoError(t, err)
	assert.Equal(t, "ops", user)
	_, err = s.CheckApiKey("bad")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	for name, check := range storeChecks {
		t.Run(name, func(t *testing.T) { check(t, newTestStore(t)) })
	}
}

var storeChecks = map[string]func(*testing.T, *Store){
	"SaveAndLoadSession":    checkSaveAndLoadSession,
	"FindSessionByChannel":  checkFindSessionByChannel,
	"Diagnostics":           checkDiagnostics,
	"CredentialsAndApiKeys": checkCredentialsAndApiKeys,
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", postgresDialect.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Equal(t, "WHERE x = ?", sqliteDialect.rebind("WHERE x = ?"))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botflow.db")
	s, err := OpenSQLite(path, discard())
	require.NoError(t, err)
	require.NoError(t, s.SaveSession(context.Background(), entity.SessionRecord{ID: "f", State: state("f", "b")}, nil, nil, nil, nil))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, discard())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadSession(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, "b", got.State.CurrentBlockID)
}
