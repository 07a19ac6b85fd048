package handler

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/mininotes/mininotes-go/internal/api"
	"github.com/mininotes/mininotes-go/internal/service"
)

var (
	ErrUsage              = errors.New("invalid arguments")
	ErrNotAuthenticated   = errors.New("not logged in")
	ErrMissingCredentials = fmt.Errorf("%w: email and password are required", service.ErrValidation)
)

// Exit codes returned by Router.Run.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// HandlerFunc runs one command with the arguments that follow its name.
type HandlerFunc func(ctx context.Context, args []string) error

// SessionChecker reports whether a session is active.
type SessionChecker interface {
	IsAuthenticated() bool
}

type route struct {
	name    string
	usage   string
	summary string
	authed  bool
	fn      HandlerFunc
}

// Router dispatches command lines to handlers.
type Router struct {
	sessions SessionChecker
	console  *Console
	routes   []route
}

// NewRouter creates a new Router.
func NewRouter(sessions SessionChecker, console *Console) *Router {
	return &Router{sessions: sessions, console: console}
}

// Handle registers a command that runs without a session.
func (r *Router) Handle(name, usage, summary string, fn HandlerFunc) {
	r.routes = append(r.routes, route{name: name, usage: usage, summary: summary, fn: fn})
}

// HandleAuthed registers a command that requires a session.
func (r *Router) HandleAuthed(name, usage, summary string, fn HandlerFunc) {
	r.routes = append(r.routes, route{name: name, usage: usage, summary: summary, authed: true, fn: fn})
}

// Run executes the command named by args[0] and returns the process exit code.
func (r *Router) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		r.printUsage()
		return ExitUsage
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		r.printUsage()
		return ExitOK
	}

	rt, ok := r.lookup(name)
	if !ok {
		r.console.Errorln(fmt.Sprintf("unknown command %q", name))
		r.printUsage()
		return ExitUsage
	}

	if rt.authed && !r.sessions.IsAuthenticated() {
		r.console.Errorln(msgNotLoggedIn)
		return ExitError
	}

	err := rt.fn(ctx, args[1:])
	if err == nil {
		return ExitOK
	}

	log.Debug().Err(err).Str("command", name).Msg("command failed")

	if errors.Is(err, ErrUsage) {
		r.console.Errorln("usage: notes " + rt.usage)
		return ExitUsage
	}
	if msg := Message(err); msg != "" {
		r.console.Errorln(msg)
	}
	return ExitError
}

func (r *Router) lookup(name string) (route, bool) {
	for _, rt := range r.routes {
		if rt.name == name {
			return rt, true
		}
	}
	return route{}, false
}

func (r *Router) printUsage() {
	r.console.Errorln("usage: notes <command> [arguments]")
	r.console.Errorln()
	r.console.Errorln("commands:")

	tw := tabwriter.NewWriter(r.console.err, 0, 4, 2, ' ', 0)
	for _, rt := range r.routes {
		fmt.Fprintf(tw, "  %s\t%s\n", rt.usage, rt.summary)
	}
	tw.Flush()
}

// bannerError carries the view's inline error text for a failed operation.
type bannerError struct {
	banner string
	err    error
}

func (e *bannerError) Error() string { return e.banner }
func (e *bannerError) Unwrap() error { return e.err }

func withBanner(banner string, err error) error {
	if banner == "" {
		return err
	}
	return &bannerError{banner: banner, err: err}
}

// Message turns err into the text shown to the user. An expired session has
// already been announced, so it yields "".
func Message(err error) string {
	var be *bannerError
	switch {
	case errors.Is(err, api.ErrAuthorizationExpired):
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return msgNotLoggedIn
	case errors.Is(err, ErrMissingCredentials):
		return "Email and password are required."
	case errors.Is(err, service.ErrEmptyContent):
		return "Note content cannot be empty."
	case errors.Is(err, service.ErrNoteNotFound):
		return "Note not found."
	case errors.Is(err, service.ErrLogoutIncomplete):
		return "Logged out, but the saved session could not be removed. Run: notes logout"
	case errors.As(err, &be):
		return be.banner
	}
	return api.Message(err)
}

// Register wires every notes command into r.
func Register(r *Router, auth *AuthHandler, notes *NotesHandler) {
	r.Handle("login", "login [-email addr] [-password secret]", "sign in", auth.HandleLogin)
	r.Handle("register", "register [-email addr] [-password secret]", "create an account and sign in", auth.HandleRegister)
	r.Handle("logout", "logout", "sign out", auth.HandleLogout)
	r.Handle("whoami", "whoami", "show the signed-in account", auth.HandleWhoami)
	r.Handle("ping", "ping", "check that the notes service is reachable", auth.HandlePing)

	r.HandleAuthed("list", "list", "list notes, newest first", notes.HandleList)
	r.HandleAuthed("show", "show <id>", "show one note", notes.HandleShow)
	r.HandleAuthed("add", "add <text...>", "create a note", notes.HandleAdd)
	r.HandleAuthed("edit", "edit <id> <text...>", "replace the text of a note", notes.HandleEdit)
	r.HandleAuthed("delete", "delete [-y] <id>", "delete a note", notes.HandleDelete)
}

// AnnounceExpiry prints the log-in-again notice whenever the gateway ends
// the session. It returns the unsubscribe function.
func AnnounceExpiry(sessions service.SessionEvents, console *Console) func() {
	return sessions.Subscribe(func(evt service.SessionEvent) {
		if evt.Reason == service.ReasonExpired {
			console.Errorln(MsgSessionExpired)
		}
	})
}
