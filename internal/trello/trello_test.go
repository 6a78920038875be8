package trello

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/config"
)

// startFakeTrello serves a minimal Trello API on a random local port.
func startFakeTrello(t *testing.T, status int) (string, chan map[string]any) {
	t.Helper()

	received := make(chan map[string]any, 4)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/1/cards", func(c *fiber.Ctx) error {
		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return err
		}
		received <- body

		return c.Status(status).JSON(fiber.Map{"id": "abc123"})
	})
	app.Post("/1/cards/:id/actions/comments", func(c *fiber.Ctx) error {
		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return err
		}
		body["card"] = c.Params("id")
		received <- body

		return c.SendStatus(status)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String() + "/1", received
}

func newClient(baseURL string) *Client {
	return New(config.Trello{
		Enabled: true, BaseURL: baseURL, Key: "k", Token: "t", ListID: "list", Timeout: 2 * time.Second,
	})
}

func TestNewDisabled(t *testing.T) {
	c := New(config.Trello{})
	assert.Nil(t, c)

	_, err := c.CreateCard(context.Background(), "x", "y")
	require.ErrorIs(t, err, ErrDisabled)
	require.ErrorIs(t, c.AddComment(context.Background(), "id", "x"), ErrDisabled)
}

func TestCreateCard(t *testing.T) {
	url, received := startFakeTrello(t, fiber.StatusOK)

	id, err := newClient(url).CreateCard(context.Background(), "BCR-25/26-001: Title", "desc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	body := <-received
	assert.Equal(t, "BCR-25/26-001: Title", body["name"])
	assert.Equal(t, "list", body["idList"])
	assert.Equal(t, "top", body["pos"])
	assert.Equal(t, "k", body["key"])
}

func TestCreateCardRejected(t *testing.T) {
	url, _ := startFakeTrello(t, fiber.StatusUnauthorized)

	_, err := newClient(url).CreateCard(context.Background(), "x", "y")
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestAddComment(t *testing.T) {
	url, received := startFakeTrello(t, fiber.StatusOK)

	require.NoError(t, newClient(url).AddComment(context.Background(), "abc123", "Phase 4 completed"))

	body := <-received
	assert.Equal(t, "abc123", body["card"])
	assert.Equal(t, "Phase 4 completed", body["text"])
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient("http://127.0.0.1:1").CreateCard(ctx, "x", "y")
	require.ErrorIs(t, err, context.Canceled)
}
