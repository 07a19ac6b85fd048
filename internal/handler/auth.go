package handler

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mininotes/mininotes-go/internal/model"
	"github.com/mininotes/mininotes-go/internal/service"
)

// HealthChecker checks that the gateway is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// AuthHandler handles the account commands.
type AuthHandler struct {
	sessions *service.SessionStore
	health   HealthChecker
	console  *Console
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions *service.SessionStore, health HealthChecker, console *Console) *AuthHandler {
	return &AuthHandler{sessions: sessions, health: health, console: console}
}

// HandleLogin handles "notes login [-email addr] [-password secret]".
func (h *AuthHandler) HandleLogin(ctx context.Context, args []string) error {
	creds, err := h.credentials("login", args)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Login(ctx, creds)
	if err != nil {
		return err
	}

	h.console.Printf("Logged in as %s\n", sess.User.Email)
	return nil
}

// HandleRegister handles "notes register [-email addr] [-password secret]".
func (h *AuthHandler) HandleRegister(ctx context.Context, args []string) error {
	creds, err := h.credentials("register", args)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Register(ctx, creds)
	if err != nil {
		return err
	}

	h.console.Printf("Account created. Logged in as %s\n", sess.User.Email)
	return nil
}

// HandleLogout handles "notes logout".
func (h *AuthHandler) HandleLogout(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return ErrUsage
	}
	if err := h.sessions.Logout(ctx); err != nil {
		return err
	}
	h.console.Println("Logged out.")
	return nil
}

// HandleWhoami handles "notes whoami".
func (h *AuthHandler) HandleWhoami(_ context.Context, args []string) error {
	if len(args) > 0 {
		return ErrUsage
	}

	user, ok := h.sessions.User()
	if !ok {
		return ErrNotAuthenticated
	}

	h.console.Printf("%s (id %d)\n", user.Email, user.ID)
	if !user.CreatedAt.IsZero() {
		h.console.Printf("Member since: %s\n", formatTime(user.CreatedAt))
	}
	return nil
}

// HandlePing handles "notes ping".
func (h *AuthHandler) HandlePing(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return ErrUsage
	}
	if err := h.health.Health(ctx); err != nil {
		return err
	}
	h.console.Println("Notes service is reachable.")
	return nil
}

// credentials reads email and password from flags, a positional email, or
// the console, in that order.
func (h *AuthHandler) credentials(name string, args []string) (model.Credentials, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return model.Credentials{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 1 {
		return model.Credentials{}, ErrUsage
	}
	if *email == "" && fs.NArg() == 1 {
		*email = fs.Arg(0)
	}

	var err error
	if *email == "" {
		if *email, err = h.console.Prompt("Email: "); err != nil && !errors.Is(err, ErrNoInput) {
			return model.Credentials{}, err
		}
	}
	if *password == "" {
		if *password, err = h.console.Prompt("Password: "); err != nil && !errors.Is(err, ErrNoInput) {
			return model.Credentials{}, err
		}
	}

	creds := model.Credentials{Email: strings.TrimSpace(*email), Password: *password}
	if creds.Email == "" || creds.Password == "" {
		return model.Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}
