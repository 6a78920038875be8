// Package trello creates and comments on Trello cards for BCRs.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dfe-rrdm/rrdm/internal/config"
)

var (
	// ErrDisabled is returned when the integration is switched off.
	ErrDisabled = errors.New("trello integration is disabled")
	// ErrUnexpectedStatus is returned when Trello answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected trello response status")
)

// Client talks to the Trello REST API.
type Client struct {
	baseURL string
	key     string
	token   string
	listID  string
	timeout time.Duration
}

// New returns a Client, or nil when the integration is disabled.
func New(cfg config.Trello) *Client {
	if !cfg.Enabled {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		token:   cfg.Token,
		listID:  cfg.ListID,
		timeout: cfg.Timeout,
	}
}

type card struct {
	ID string `json:"id"`
}

// CreateCard adds a card at the top of the configured list and returns its id.
func (c *Client) CreateCard(ctx context.Context, name, description string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}

	body, err := c.post(ctx, "/cards", fiber.Map{
		"name":   name,
		"desc":   description,
		"idList": c.listID,
		"pos":    "top",
	})
	if err != nil {
		return "", err
	}

	var out card
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode trello card: %w", err)
	}

	log.Info().Str("card", out.ID).Msg("trello card created")

	return out.ID, nil
}

// AddComment posts a comment on an existing card.
func (c *Client) AddComment(ctx context.Context, cardID, text string) error {
	if c == nil {
		return ErrDisabled
	}

	_, err := c.post(ctx, "/cards/"+cardID+"/actions/comments", fiber.Map{"text": text})

	return err
}

func (c *Client) post(ctx context.Context, path string, payload fiber.Map) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload["key"] = c.key
	payload["token"] = c.token

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	agent := fiber.Post(c.baseURL + path)
	agent.Timeout(timeout)
	agent.JSON(payload)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("trello request %s failed: %w", path, errors.Join(errs...))
	}

	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}

	return body, nil
}
