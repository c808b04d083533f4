package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BotFlow/entity"
	"BotFlow/internal/config"
)

func newService(url string) *Service {
	conf := &config.Config{}
	conf.Engine.BaseURL = url + "/"
	conf.Engine.ApiKey = "secret"
	conf.Engine.Timeout = 2 * time.Second
	return NewEngineService(conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestContinue(t *testing.T) {
	var got map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, continuePath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"messages":[{"id":"m1","type":"text","content":{"plainText":"hi"}}],
			"input":{"id":"in","type":"text input"},
			"newSessionState":{"sessionId":"s1","currentBlockId":"b2","typebotsQueue":[],"variables":[{"id":"v1"}]},
			"logs":[{"status":"success","description":"webhook"}]
		}`))
	}))
	defer server.Close()

	state := &entity.SessionState{SessionID: "s1", CurrentBlockID: "b1"}
	resp, err := newService(server.URL).Continue(context.Background(), entity.ContinueChatRequest{
		Message: entity.Reply("yes"),
		Version: "2",
		State:   state,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `"yes"`, string(got["message"]))
	assert.JSONEq(t, `"2"`, string(got["version"]))
	_, hasFlag := got["multipleWhatsappIntegration"]
	assert.False(t, hasFlag)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	assert.Equal(t, entity.TextInput, resp.Input.Type)
	assert.Equal(t, "b2", resp.NewSessionState.CurrentBlockID)
	vars, ok := resp.NewSessionState.Extra("variables")
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":"v1"}]`, string(vars))
	assert.Len(t, resp.Logs, 1)
}

func TestContinueErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "session expired", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newService(server.URL).Continue(context.Background(), entity.ContinueChatRequest{Version: "2", State: &entity.SessionState{}})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Contains(t, statusErr.Body, "session expired")
}

func TestContinueWithoutState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer server.Close()

	_, err := newService(server.URL).Continue(context.Background(), entity.ContinueChatRequest{Version: "2", State: &entity.SessionState{}})
	assert.Error(t, err)
}
