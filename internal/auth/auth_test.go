package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/david/signal-desk/internal/db"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(db.NewMemoryStore(), "test-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateUserAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, Credentials{Email: " Jane@Desk.Example ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "jane@desk.example" || user.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := svc.CreateUser(ctx, Credentials{Email: "jane@desk.example", Password: "another-one"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, err := svc.Login(ctx, Credentials{Email: "jane@desk.example", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("expected invalid creds, got %v", err)
	}
	if _, err := svc.Login(ctx, Credentials{Email: "nobody@desk.example", Password: "correct-horse"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("expected invalid creds for unknown user, got %v", err)
	}

	resp, err := svc.Login(ctx, Credentials{Email: "JANE@desk.example", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Parse(resp.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "jane@desk.example" || claims.Subject != user.ID.String() {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestCreateUser_ValidatesInput(t *testing.T) {
	svc := newService(t)
	for _, c := range []Credentials{
		{Email: "not-an-email", Password: "long-enough"},
		{Email: "a@b.example", Password: "short"},
	} {
		if _, err := svc.CreateUser(context.Background(), c); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", c, err)
		}
	}
}

func TestParse_RejectsExpiredAndForeignTokens(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.CreateUser(ctx, Credentials{Email: "a@desk.example", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Login(ctx, Credentials{Email: "a@desk.example", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewService(db.NewMemoryStore(), "other-secret", time.Hour, nil)
	if _, err := other.Parse(resp.Token); err == nil {
		t.Fatal("expected signature mismatch")
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Parse(resp.Token); err == nil {
		t.Fatal("expected expired token rejected")
	}
}

func TestMiddleware(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.CreateUser(ctx, Credentials{Email: "ops@desk.example", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Login(ctx, Credentials{Email: "ops@desk.example", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	handler := svc.Middleware(func(c echo.Context) error {
		return c.String(http.StatusOK, GetUserEmailFromContext(c))
	})

	for _, tt := range []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Token abc", http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{"Bearer " + resp.Token, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		err := handler(e.NewContext(req, rec))

		code := rec.Code
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}
		if code != tt.want {
			t.Fatalf("header %q: expected %d, got %d", tt.header, tt.want, code)
		}
		if tt.want == http.StatusOK && rec.Body.String() != "ops@desk.example" {
			t.Fatalf("expected email on context, got %q", rec.Body.String())
		}
	}
}

func TestNewService_EphemeralSecret(t *testing.T) {
	svc, err := NewService(db.NewMemoryStore(), "  ", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(svc.secret) == 0 || svc.ttl != DefaultTokenTTL {
		t.Fatalf("expected generated secret and default ttl")
	}
}
