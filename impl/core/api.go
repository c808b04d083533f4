package core

import (
	"fmt"

	"BotFlow/entity"
)

// AuthenticateByToken accepts the configured master key or any key issued
// by GenerateApiKey.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if c.authKey != "" && token == c.authKey {
		return &entity.UserAuth{Username: "admin", Token: token, Admin: true}, nil
	}

	c.mu.RLock()
	username, ok := c.keys[token]
	c.mu.RUnlock()
	if ok {
		return &entity.UserAuth{Username: username, Token: token}, nil
	}

	if c.repo == nil {
		return nil, fmt.Errorf("repository is not set")
	}
	username, err := c.repo.CheckApiKey(token)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, fmt.Errorf("invalid token")
	}

	c.mu.Lock()
	c.keys[token] = username
	c.mu.Unlock()
	return &entity.UserAuth{Username: username, Token: token}, nil
}

// ValidateToken authenticates operator websocket connections.
func (c *Core) ValidateToken(token string) (string, error) {
	user, err := c.AuthenticateByToken(token)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func (c *Core) GenerateApiKey(username string) (string, error) {
	if c.repo == nil {
		return "", fmt.Errorf("repository is not set")
	}

	apiKey, err := c.repo.GenerateApiKey(username)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	c.mu.Lock()
	c.keys[apiKey] = username
	c.mu.Unlock()
	return apiKey, nil
}
