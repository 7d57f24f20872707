package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/costavn/notify-engine/internal/stream"
	"github.com/costavn/notify-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret"

func TestNotificationIntegration_RequiresAuth(t *testing.T) {
	t.Parallel()

	app := newNotificationTestApp(t, &stubBroadcastReader{}, &stubStreamHub{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/notifications"},
		{http.MethodPost, "/notifications/read"},
		{http.MethodPost, "/notifications/read/all"},
		{http.MethodGet, "/notifications/stream"},
	}

	for _, p := range paths {
		resp, body := performRequest(t, app, p.method, p.path, "", "")
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", p.method, p.path, resp.StatusCode)
		}

		var parsed map[string]any
		if err := json.Unmarshal(body, &parsed); err != nil {
			t.Fatalf("json unmarshal error = %v", err)
		}
		if parsed["message"] != "Unauthorized" {
			t.Fatalf("body = %s, want {\"message\":\"Unauthorized\"}", string(body))
		}
	}
}

func TestNotificationIntegration_RejectsForgedToken(t *testing.T) {
	t.Parallel()

	app := newNotificationTestApp(t, &stubBroadcastReader{}, &stubStreamHub{})

	forged := signToken(t, "wrong-secret", "u1")
	resp, _ := performRequest(t, app, http.MethodGet, "/notifications", "", forged)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for token signed with the wrong secret", resp.StatusCode)
	}
}

func TestNotificationIntegration_ListNotifications(t *testing.T) {
	t.Parallel()

	readAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	entityName := "chi phí"
	svc := &stubBroadcastReader{
		listFn: func(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error) {
			if userID != "u1" {
				t.Fatalf("userID = %q, want the token subject u1", userID)
			}
			if limit != 10 {
				t.Fatalf("limit = %d, want 10 from query", limit)
			}
			return []domain.NotificationDelivery{
				{
					ID:     "d2",
					IsRead: false,
					Notification: &domain.Notification{
						ID:         "n2",
						Title:      "Chi phí đã được xóa",
						Message:    "Tên: Văn phòng phẩm",
						EntityName: &entityName,
						Action:     domain.ActionDelete,
						Type:       domain.TypeWarning,
					},
				},
				{
					ID:     "d1",
					IsRead: true,
					ReadAt: &readAt,
					Notification: &domain.Notification{
						ID:      "n1",
						Title:   "Chi phí đã được thêm mới",
						Message: "Tên: Văn phòng phẩm",
						Action:  domain.ActionCreate,
						Type:    domain.TypeSuccess,
					},
				},
			}, nil
		},
	}

	app := newNotificationTestApp(t, svc, &stubStreamHub{})

	token := signToken(t, testJWTSecret, "u1")
	resp, body := performRequest(t, app, http.MethodGet, "/notifications?limit=10", "", token)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	// The body is a bare array of delivery objects, no envelope.
	var parsed []map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("body len = %d, want 2", len(parsed))
	}
	if parsed[0]["id"] != "d2" {
		t.Fatalf("first id = %v, want d2 (service order preserved)", parsed[0]["id"])
	}
	if parsed[0]["isRead"] != false {
		t.Fatalf("first isRead = %v, want false", parsed[0]["isRead"])
	}
	if parsed[0]["type"] != "warning" {
		t.Fatalf("first type = %v, want warning", parsed[0]["type"])
	}
	if parsed[1]["readAt"] == nil {
		t.Fatal("second readAt missing, want the read timestamp")
	}
}

func TestNotificationIntegration_MarkRead(t *testing.T) {
	t.Parallel()

	var gotUserID string
	var gotIDs []string
	svc := &stubBroadcastReader{
		markReadFn: func(ctx context.Context, userID string, deliveryIDs []string) error {
			gotUserID = userID
			gotIDs = deliveryIDs
			return nil
		},
	}

	app := newNotificationTestApp(t, svc, &stubStreamHub{})

	token := signToken(t, testJWTSecret, "u1")
	resp, body := performRequest(t, app, http.MethodPost, "/notifications/read", `{"ids":["d1"," d2 ",""]}`, token)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	if gotUserID != "u1" {
		t.Fatalf("userID = %q, want u1 from the token", gotUserID)
	}
	if len(gotIDs) != 2 || gotIDs[0] != "d1" || gotIDs[1] != "d2" {
		t.Fatalf("deliveryIDs = %v, want trimmed [d1 d2]", gotIDs)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if ids, ok := parsed["ids"].([]any); !ok || len(ids) != 2 {
		t.Fatalf("ids = %v, want the accepted ids echoed", parsed["ids"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/notifications/read", `{"ids": not-json`, token)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed body", resp.StatusCode)
	}
}

func TestNotificationIntegration_MarkAllRead(t *testing.T) {
	t.Parallel()

	var gotUserID string
	svc := &stubBroadcastReader{
		markAllReadFn: func(ctx context.Context, userID string) error {
			gotUserID = userID
			return nil
		},
	}

	app := newNotificationTestApp(t, svc, &stubStreamHub{})

	token := signToken(t, testJWTSecret, "u2")
	resp, _ := performRequest(t, app, http.MethodPost, "/notifications/read/all", "", token)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotUserID != "u2" {
		t.Fatalf("userID = %q, want u2", gotUserID)
	}
}

func TestNotificationIntegration_ValidationErrorsMapTo400(t *testing.T) {
	t.Parallel()

	svc := &stubBroadcastReader{
		listFn: func(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error) {
			return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
		},
	}

	app := newNotificationTestApp(t, svc, &stubStreamHub{})

	token := signToken(t, testJWTSecret, "u1")
	resp, _ := performRequest(t, app, http.MethodGet, "/notifications", "", token)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestNotificationIntegration_StreamAcceptsQueryToken(t *testing.T) {
	t.Parallel()

	hub := &stubStreamHub{
		addFn: func(userID string) (*stream.Client, error) {
			if userID != "u1" {
				t.Fatalf("userID = %q, want u1 from the query token", userID)
			}
			return nil, errors.New("hub is shut down")
		},
	}

	app := newNotificationTestApp(t, &stubBroadcastReader{}, hub)

	token := signToken(t, testJWTSecret, "u1")
	resp, _ := performRequest(t, app, http.MethodGet, "/notifications/stream?token="+token, "", "")
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when the hub refuses the connection", resp.StatusCode)
	}
}

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sql.OpenDB(stubConnector{}), newStubRedisClient(nil))

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
	})
}

type stubBroadcastReader struct {
	listFn        func(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error)
	markReadFn    func(ctx context.Context, userID string, deliveryIDs []string) error
	markAllReadFn func(ctx context.Context, userID string) error
}

func (s *stubBroadcastReader) ListForUser(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, limit)
	}
	return nil, nil
}

func (s *stubBroadcastReader) MarkRead(ctx context.Context, userID string, deliveryIDs []string) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, deliveryIDs)
	}
	return nil
}

func (s *stubBroadcastReader) MarkAllRead(ctx context.Context, userID string) error {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return nil
}

type stubStreamHub struct {
	addFn    func(userID string) (*stream.Client, error)
	removeFn func(connectionID string)
}

func (s *stubStreamHub) AddClient(userID string) (*stream.Client, error) {
	if s.addFn != nil {
		return s.addFn(userID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubStreamHub) RemoveClient(connectionID string) {
	if s.removeFn != nil {
		s.removeFn(connectionID)
	}
}

func newNotificationTestApp(t *testing.T, svc BroadcastReader, hub StreamHub) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	h, err := NewNotificationHandler(svc, hub, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNotificationHandler() error = %v", err)
	}
	if err := RegisterNotificationRoutes(app, h, testJWTSecret); err != nil {
		t.Fatalf("RegisterNotificationRoutes() error = %v", err)
	}

	return app
}

func signToken(t *testing.T, secret string, subject string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string, token string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") {
			if h.pingErr != nil {
				cmd.SetErr(h.pingErr)
				return h.pingErr
			}
			cmd.SetErr(nil)
			return nil
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
