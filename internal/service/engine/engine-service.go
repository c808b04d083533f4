package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"BotFlow/entity"
	"BotFlow/internal/config"
	"BotFlow/internal/lib/sl"
)

const continuePath = "/api/v2/sessions/continue"

// StatusError is a non-2xx answer from the engine.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine responded %d: %s", e.Status, e.Body)
}

// Service is the HTTP client of the flow continuation engine.
type Service struct {
	baseUrl string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

func NewEngineService(conf *config.Config, logger *slog.Logger) *Service {
	return &Service{
		baseUrl: strings.TrimRight(conf.Engine.BaseURL, "/"),
		apiKey:  conf.Engine.ApiKey,
		client:  &http.Client{Timeout: conf.Engine.Timeout},
		log:     logger.With(sl.Module("engine service")),
	}
}

func (s *Service) Continue(ctx context.Context, req entity.ContinueChatRequest) (*entity.ContinueChatResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseUrl+continuePath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.log.With(sl.Err(err)).Error("continue request")
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.With(
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		).Error("non-2xx on continue")
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var out entity.ContinueChatResponse
	if err = json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.NewSessionState == nil {
		return nil, fmt.Errorf("engine response without newSessionState")
	}

	s.log.With(
		slog.Int("messages", len(out.Messages)),
		slog.Bool("input", out.Input != nil),
		slog.String("current_block", out.NewSessionState.CurrentBlockID),
	).Debug("flow continued")
	return &out, nil
}
