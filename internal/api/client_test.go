package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mininotes/mininotes-go/internal/gatewaytest"
	"github.com/mininotes/mininotes-go/internal/middleware"
	"github.com/mininotes/mininotes-go/internal/model"
)

// fakeSession is an in-memory Session for client tests.
type fakeSession struct {
	token        string
	tokenErr     error
	unauthorized int
}

func (s *fakeSession) Token(context.Context) (string, error) {
	return s.token, s.tokenErr
}

func (s *fakeSession) HandleUnauthorized(context.Context) {
	s.unauthorized++
	s.token = ""
}

func newTestClient(t *testing.T, opts ...gatewaytest.Option) (*Client, *gatewaytest.Gateway, *fakeSession) {
	t.Helper()

	gw := gatewaytest.New(opts...)
	t.Cleanup(gw.Close)

	sess := &fakeSession{}
	c := NewClient(gw.URL+"/", nil)
	c.UseSession(sess)
	return c, gw, sess
}

func login(t *testing.T, c *Client, sess *fakeSession, gw *gatewaytest.Gateway) model.User {
	t.Helper()

	gw.AddUser("a@b.com", "secret")
	resp, err := c.Login(context.Background(), model.Credentials{Email: "a@b.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}
	sess.token = resp.Token
	return resp.User
}

func TestLogin(t *testing.T) {
	c, gw, _ := newTestClient(t)
	gw.AddUser("a@b.com", "secret")
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		resp, err := c.Login(ctx, model.Credentials{Email: "a@b.com", Password: "secret"})
		if err != nil {
			t.Fatalf("Login() unexpected error: %v", err)
		}
		if resp.Token == "" {
			t.Error("Login() returned empty token")
		}
		if resp.User.ID != 1 || resp.User.Email != "a@b.com" {
			t.Errorf("Login() user = %+v, want id 1 a@b.com", resp.User)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := c.Login(ctx, model.Credentials{Email: "a@b.com", Password: "nope"})
		if !errors.Is(err, ErrAuth) {
			t.Fatalf("Login() error = %v, want ErrAuth", err)
		}
		if got := Message(err); got != "Invalid email or password" {
			t.Errorf("Message() = %q, want %q", got, "Invalid email or password")
		}
	})

	t.Run("never sends authorization", func(t *testing.T) {
		for _, r := range gw.Requests() {
			if r.Authorization != "" {
				t.Errorf("%s %s carried Authorization %q", r.Method, r.Path, r.Authorization)
			}
		}
	})
}

func TestRegister(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	resp, err := c.Register(ctx, model.Credentials{Email: "new@b.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if resp.User.Email != "new@b.com" || resp.Token == "" {
		t.Errorf("Register() = %+v", resp)
	}

	_, err = c.Register(ctx, model.Credentials{Email: "new@b.com", Password: "secret"})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Register() duplicate error = %v, want ErrAuth", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("Register() duplicate error = %#v, want 409 APIError", err)
	}

	if gw.RequestCount() != 2 {
		t.Errorf("gateway saw %d requests, want 2", gw.RequestCount())
	}
}

func TestAuthRateLimitedIsNotAuthError(t *testing.T) {
	c, gw, _ := newTestClient(t, gatewaytest.WithAuthRateLimit(0.001, 1))
	gw.AddUser("a@b.com", "secret")
	ctx := context.Background()

	if _, err := c.Login(ctx, model.Credentials{Email: "a@b.com", Password: "secret"}); err != nil {
		t.Fatalf("first Login() unexpected error: %v", err)
	}

	_, err := c.Login(ctx, model.Credentials{Email: "a@b.com", Password: "secret"})
	if errors.Is(err, ErrAuth) {
		t.Fatalf("Login() error = %v, rate limiting must not look like rejected credentials", err)
	}
	if !errors.Is(err, ErrNetworkOrServer) {
		t.Errorf("Login() error = %v, want ErrNetworkOrServer", err)
	}
}

func TestNotesCRUD(t *testing.T) {
	for _, wrapped := range []bool{false, true} {
		name := "bare"
		var opts []gatewaytest.Option
		if wrapped {
			name = "wrapped"
			opts = append(opts, gatewaytest.WithWrappedNotes())
		}

		t.Run(name, func(t *testing.T) {
			c, gw, sess := newTestClient(t, opts...)
			login(t, c, sess, gw)
			ctx := context.Background()

			created, err := c.CreateNote(ctx, "Buy milk")
			if err != nil {
				t.Fatalf("CreateNote() unexpected error: %v", err)
			}
			if created.ID == 0 || created.Content != "Buy milk" {
				t.Errorf("CreateNote() = %+v", created)
			}

			got, err := c.GetNote(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetNote() unexpected error: %v", err)
			}
			if got.ID != created.ID {
				t.Errorf("GetNote() id = %d, want %d", got.ID, created.ID)
			}

			updated, err := c.UpdateNote(ctx, created.ID, "Buy oat milk")
			if err != nil {
				t.Fatalf("UpdateNote() unexpected error: %v", err)
			}
			if updated.Content != "Buy oat milk" {
				t.Errorf("UpdateNote() content = %q", updated.Content)
			}

			notes, err := c.ListNotes(ctx)
			if err != nil {
				t.Fatalf("ListNotes() unexpected error: %v", err)
			}
			if len(notes) != 1 || notes[0].Content != "Buy oat milk" {
				t.Errorf("ListNotes() = %+v", notes)
			}

			if err := c.DeleteNote(ctx, created.ID); err != nil {
				t.Fatalf("DeleteNote() unexpected error: %v", err)
			}

			notes, err = c.ListNotes(ctx)
			if err != nil {
				t.Fatalf("ListNotes() unexpected error: %v", err)
			}
			if notes == nil || len(notes) != 0 {
				t.Errorf("ListNotes() after delete = %#v, want empty non-nil", notes)
			}
		})
	}
}

func TestAuthorizationHeaderBuiltPerRequest(t *testing.T) {
	c, gw, sess := newTestClient(t)
	login(t, c, sess, gw)
	ctx := context.Background()

	if _, err := c.ListNotes(ctx); err != nil {
		t.Fatalf("ListNotes() unexpected error: %v", err)
	}

	reqs := gw.Requests()
	last := reqs[len(reqs)-1]
	if last.Authorization != "Bearer "+sess.token {
		t.Errorf("Authorization = %q, want bearer of current token", last.Authorization)
	}

	sess.token = ""
	_, err := c.ListNotes(ctx)
	if !errors.Is(err, ErrAuthorizationExpired) {
		t.Fatalf("ListNotes() without token error = %v, want ErrAuthorizationExpired", err)
	}
	reqs = gw.Requests()
	if got := reqs[len(reqs)-1].Authorization; got != "" {
		t.Errorf("Authorization = %q, want none once the token is gone", got)
	}
}

func TestUnauthorizedNotifiesSession(t *testing.T) {
	calls := []struct {
		name   string
		method string
		path   string
		call   func(context.Context, *Client) error
	}{
		{"list", http.MethodGet, "/api/notes", func(ctx context.Context, c *Client) error {
			_, err := c.ListNotes(ctx)
			return err
		}},
		{"create", http.MethodPost, "/api/notes", func(ctx context.Context, c *Client) error {
			_, err := c.CreateNote(ctx, "x")
			return err
		}},
		{"update", http.MethodPut, "/api/notes/1", func(ctx context.Context, c *Client) error {
			_, err := c.UpdateNote(ctx, 1, "x")
			return err
		}},
		{"delete", http.MethodDelete, "/api/notes/1", func(ctx context.Context, c *Client) error {
			return c.DeleteNote(ctx, 1)
		}},
	}

	for _, tt := range calls {
		t.Run(tt.name, func(t *testing.T) {
			c, gw, sess := newTestClient(t)
			login(t, c, sess, gw)
			gw.FailNext(tt.method, tt.path, http.StatusUnauthorized)

			err := tt.call(context.Background(), c)
			if !errors.Is(err, ErrAuthorizationExpired) {
				t.Fatalf("error = %v, want ErrAuthorizationExpired", err)
			}
			if sess.unauthorized != 1 {
				t.Errorf("HandleUnauthorized called %d times, want 1", sess.unauthorized)
			}
		})
	}

	t.Run("revoked token", func(t *testing.T) {
		c, gw, sess := newTestClient(t)
		login(t, c, sess, gw)
		gw.RevokeTokens()

		if _, err := c.ListNotes(context.Background()); !errors.Is(err, ErrAuthorizationExpired) {
			t.Fatalf("ListNotes() error = %v, want ErrAuthorizationExpired", err)
		}
		if sess.unauthorized != 1 {
			t.Errorf("HandleUnauthorized called %d times, want 1", sess.unauthorized)
		}
	})
}

func TestServerErrorsAreRetryable(t *testing.T) {
	c, gw, sess := newTestClient(t)
	login(t, c, sess, gw)
	gw.FailNext(http.MethodPost, "/api/notes", http.StatusInternalServerError)

	_, err := c.CreateNote(context.Background(), "x")
	if !errors.Is(err, ErrNetworkOrServer) {
		t.Fatalf("CreateNote() error = %v, want ErrNetworkOrServer", err)
	}
	if sess.unauthorized != 0 {
		t.Error("HandleUnauthorized called for a 500")
	}

	if _, err := c.CreateNote(context.Background(), "x"); err != nil {
		t.Errorf("CreateNote() retry unexpected error: %v", err)
	}
}

func TestNotFound(t *testing.T) {
	c, gw, sess := newTestClient(t)
	login(t, c, sess, gw)

	_, err := c.UpdateNote(context.Background(), 999, "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("UpdateNote() error = %v, want 404", err)
	}
	if apiErr.Message != "Note not found" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Note not found")
	}
}

func TestTokenReadFailure(t *testing.T) {
	c, gw, sess := newTestClient(t)
	sess.tokenErr = errors.New("disk gone")

	if _, err := c.ListNotes(context.Background()); !errors.Is(err, ErrNetworkOrServer) {
		t.Errorf("ListNotes() error = %v, want ErrNetworkOrServer", err)
	}
	if gw.RequestCount() != 0 {
		t.Errorf("gateway saw %d requests, want 0", gw.RequestCount())
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil)
	err := c.Health(context.Background())
	if !errors.Is(err, ErrNetworkOrServer) {
		t.Errorf("Health() error = %v, want ErrNetworkOrServer", err)
	}
}

func TestHealth(t *testing.T) {
	c, _, _ := newTestClient(t)
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health() unexpected error: %v", err)
	}
}

func TestMalformedBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/auth/"):
			w.Write([]byte(`{"user":{"id":1}}`))
		default:
			w.Write([]byte(`<html>`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, model.Credentials{Email: "a", Password: "b"}); !errors.Is(err, ErrNetworkOrServer) {
		t.Errorf("Login() without token error = %v, want ErrNetworkOrServer", err)
	}
	if _, err := c.ListNotes(ctx); !errors.Is(err, ErrNetworkOrServer) {
		t.Errorf("ListNotes() html error = %v, want ErrNetworkOrServer", err)
	}
	if _, err := c.CreateNote(ctx, "x"); !errors.Is(err, ErrNetworkOrServer) {
		t.Errorf("CreateNote() html error = %v, want ErrNetworkOrServer", err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":"Invalid email or password"}`, "Invalid email or password"},
		{`{"message":"Note deleted"}`, "Note deleted"},
		{"Invalid credentials\n", "Invalid credentials"},
		{`<html>oops</html>`, ""},
		{``, ""},
	}

	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestRequestIDReachesGateway(t *testing.T) {
	gw := gatewaytest.New()
	t.Cleanup(gw.Close)

	httpClient := &http.Client{Transport: middleware.Chain(nil, middleware.RequestID, middleware.Logger)}
	c := NewClient(gw.URL, httpClient)

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() unexpected error: %v", err)
	}

	reqs := gw.Requests()
	if len(reqs) != 1 {
		t.Fatalf("gateway saw %d requests, want 1", len(reqs))
	}
	if _, err := uuid.Parse(reqs[0].RequestID); err != nil {
		t.Errorf("RequestID = %q, want the UUID set by the client", reqs[0].RequestID)
	}
}
