package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	var hits atomic.Int64
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &hits, cleanup
}

func postResource(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode, string(payload)
}

func TestIdempotencyPassThroughWithoutHeader(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	status1, _ := postResource(t, app, "")
	status2, _ := postResource(t, app, "")
	if status1 != fiber.StatusCreated || status2 != fiber.StatusCreated {
		t.Fatalf("expected both requests handled, got %d and %d", status1, status2)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected handler hit twice without keys, got %d", hits.Load())
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	status1, body1 := postResource(t, app, "abc123")
	if status1 != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status1)
	}

	// Second request replays the stored response without invoking the handler.
	status2, body2 := postResource(t, app, "abc123")
	if status2 != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status2)
	}
	if body1 != body2 {
		t.Fatalf("expected cached payload %s got %s", body1, body2)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected handler hit once, got %d", hits.Load())
	}
}

func TestIdempotencyDistinctKeys(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	postResource(t, app, "key-a")
	postResource(t, app, "key-b")
	if hits.Load() != 2 {
		t.Fatalf("expected two handler hits for distinct keys, got %d", hits.Load())
	}
}
