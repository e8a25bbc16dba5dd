package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-lms-auth/middleware/jwtware"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (any, error) {
	args := m.Called(ctx, token)
	return args.Get(0), args.Error(1)
}

type principalKey struct{}

func newApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Get("/protected", jwtware.New(cfg), func(c *fiber.Ctx) error {
		principal, _ := c.Locals("user").(string)
		fromCtx, _ := c.UserContext().Value(principalKey{}).(string)
		return c.SendString(principal + "|" + fromCtx)
	})
	return app
}

func body(t *testing.T, resp io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(resp)
	require.NoError(t, err)
	return string(b)
}

func TestJWTWare_BearerHeader(t *testing.T) {
	authenticator := new(MockAuthenticator)
	authenticator.On("Authenticate", mock.Anything, "good-token").Return("alice", nil)

	app := newApp(jwtware.Config{
		Authenticator: authenticator,
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			return context.WithValue(ctx, principalKey{}, principal)
		},
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice|alice", body(t, resp.Body))

	authenticator.AssertExpectations(t)
}

func TestJWTWare_MissingToken(t *testing.T) {
	authenticator := new(MockAuthenticator)
	app := newApp(jwtware.Config{Authenticator: authenticator})

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc"} {
		req := httptest.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "header %q", header)
	}

	authenticator.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestJWTWare_CustomMissingTokenError(t *testing.T) {
	missing := errors.New("no token")
	var got error

	app := newApp(jwtware.Config{
		Authenticator:     new(MockAuthenticator),
		MissingTokenError: missing,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			got = err
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, missing, got)
}

func TestJWTWare_AuthenticatorError(t *testing.T) {
	rejected := errors.New("revoked")
	authenticator := new(MockAuthenticator)
	authenticator.On("Authenticate", mock.Anything, "revoked-token").Return(nil, rejected)

	var got error
	app := newApp(jwtware.Config{
		Authenticator: authenticator,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			got = err
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer revoked-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.ErrorIs(t, got, rejected)
}

func TestJWTWare_ValidationListener(t *testing.T) {
	authenticator := new(MockAuthenticator)
	authenticator.On("Authenticate", mock.Anything, "t").Return("bob", nil)

	app := newApp(jwtware.Config{
		Authenticator: authenticator,
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(c *fiber.Ctx, principal any) error {
				if principal == "bob" {
					return errors.New("bob is suspended")
				}
				return nil
			},
		},
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer t")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	authenticator := new(MockAuthenticator)
	authenticator.On("Authenticate", mock.Anything, "from-cookie").Return("cookie-user", nil)
	authenticator.On("Authenticate", mock.Anything, "from-query").Return("query-user", nil)

	app := newApp(jwtware.Config{
		Authenticator: authenticator,
		TokenLookup:   "header:X-Token,cookie:session,query:auth_token",
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "from-cookie"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "cookie-user|", body(t, resp.Body))

	resp, err = app.Test(httptest.NewRequest("GET", "/protected?auth_token=from-query", nil))
	require.NoError(t, err)
	assert.Equal(t, "query-user|", body(t, resp.Body))
}

func TestJWTWare_FilterAndPreAuthenticated(t *testing.T) {
	authenticator := new(MockAuthenticator)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if c.Query("pre") != "" {
			c.Locals("user", "pre-authenticated")
		}
		return c.Next()
	})
	app.Get("/", jwtware.New(jwtware.Config{
		Authenticator: authenticator,
		Filter: func(c *fiber.Ctx) bool {
			return c.Query("skip") == "1"
		},
	}), func(c *fiber.Ctx) error {
		principal, _ := c.Locals("user").(string)
		return c.SendString("ok:" + principal)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/?skip=1", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok:", body(t, resp.Body))

	resp, err = app.Test(httptest.NewRequest("GET", "/?pre=1", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok:pre-authenticated", body(t, resp.Body))

	authenticator.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestJWTWare_RequiresAuthenticator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, query:token,bogus,param:id")
	assert.Len(t, extractors, 3)
}
