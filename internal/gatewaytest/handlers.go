package gatewaytest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mininotes/mininotes-go/internal/crypto"
	"github.com/mininotes/mininotes-go/internal/model"
)

var (
	errEmailTaken       = errors.New("User with this email already exists")
	errInvalidLogin     = errors.New("Invalid email or password")
	errContentRequired  = errors.New("Content is required")
	errNoteNotFound     = errors.New("Note not found")
	errCredentialsBlank = errors.New("Email and password are required")
	errPasswordShort    = errors.New("Password must be at least 6 characters long")
)

type contextKey string

const userIDKey contextKey = "userID"

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return
	}

	switch {
	case req.Email == "" || req.Password == "":
		writeJSON(w, http.StatusBadRequest, errorResponse(errCredentialsBlank.Error()))
		return
	case len(req.Password) < 6:
		writeJSON(w, http.StatusBadRequest, errorResponse(errPasswordShort.Error()))
		return
	}

	g.mu.Lock()
	user, err := g.createAccountLocked(req.Email, req.Password)
	g.mu.Unlock()
	if err != nil {
		if errors.Is(err, errEmailTaken) {
			writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse("Failed to create user"))
		return
	}

	g.writeAuth(w, http.StatusCreated, user)
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse(errCredentialsBlank.Error()))
		return
	}

	g.mu.Lock()
	acct, ok := g.accounts[req.Email]
	g.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(errInvalidLogin.Error()))
		return
	}

	match, err := crypto.VerifyPassword(req.Password, acct.passwordHash)
	if err != nil || !match {
		writeJSON(w, http.StatusUnauthorized, errorResponse(errInvalidLogin.Error()))
		return
	}

	g.writeAuth(w, http.StatusOK, acct.user)
}

func (g *Gateway) writeAuth(w http.ResponseWriter, status int, user model.User) {
	g.mu.Lock()
	token := g.nextToken
	g.nextToken = ""
	if token != "" {
		g.static[token] = user.ID
	}
	secret := g.secret
	g.mu.Unlock()

	if token == "" {
		var err error
		token, err = crypto.GenerateToken(user.ID, user.Email, secret, g.tokenExpiry)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse("Failed to generate token"))
			return
		}
	}

	writeJSON(w, status, model.AuthResponse{Token: token, User: user})
}

// requireAuth validates the bearer token, mirroring the backend's JWT middleware.
func (g *Gateway) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse("Missing authorization header"))
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse("Invalid authorization header format"))
			return
		}

		g.mu.Lock()
		userID, ok := g.static[token]
		secret := g.secret
		g.mu.Unlock()

		if !ok {
			claims, err := crypto.ValidateToken(token, secret)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse("Invalid or expired token"))
				return
			}
			userID = claims.UserID
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

func (g *Gateway) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes := g.Notes(userIDFromContext(r.Context()))
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, model.NotesResponse{Notes: notes})
}

func (g *Gateway) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	g.mu.Lock()
	_, note, found := g.findNoteLocked(userIDFromContext(r.Context()), id)
	g.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse(errNoteNotFound.Error()))
		return
	}

	g.writeNote(w, http.StatusOK, note)
}

func (g *Gateway) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}

	g.mu.Lock()
	note := g.insertNoteLocked(userIDFromContext(r.Context()), content)
	g.mu.Unlock()

	g.writeNote(w, http.StatusCreated, note)
}

func (g *Gateway) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}

	userID := userIDFromContext(r.Context())

	g.mu.Lock()
	idx, note, found := g.findNoteLocked(userID, id)
	if found {
		note.Content = content
		note.UpdatedAt = model.NewTimestamp(g.now())
		g.notes[userID][idx] = note
	}
	g.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse(errNoteNotFound.Error()))
		return
	}
	g.writeNote(w, http.StatusOK, note)
}

func (g *Gateway) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	userID := userIDFromContext(r.Context())

	g.mu.Lock()
	idx, _, found := g.findNoteLocked(userID, id)
	if found {
		list := g.notes[userID]
		g.notes[userID] = append(list[:idx:idx], list[idx+1:]...)
	}
	g.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse(errNoteNotFound.Error()))
		return
	}

	if g.wrapNotes {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) writeNote(w http.ResponseWriter, status int, note model.Note) {
	if g.wrapNotes {
		writeJSON(w, status, map[string]model.Note{"note": note})
		return
	}
	writeJSON(w, status, note)
}

func (g *Gateway) createAccountLocked(email, password string) (model.User, error) {
	if _, exists := g.accounts[email]; exists {
		return model.User{}, errEmailTaken
	}

	hash, err := crypto.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}

	g.nextUserID++
	user := model.User{
		ID:        g.nextUserID,
		Email:     email,
		CreatedAt: model.NewTimestamp(g.now()),
	}
	g.accounts[email] = &account{user: user, passwordHash: hash}
	return user, nil
}

func (g *Gateway) insertNoteLocked(userID int64, content string) model.Note {
	g.nextNoteID++
	owner := userID
	now := model.NewTimestamp(g.now())
	note := model.Note{
		ID:        g.nextNoteID,
		UserID:    &owner,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.notes[userID] = append([]model.Note{note}, g.notes[userID]...)
	return note
}

func (g *Gateway) findNoteLocked(userID, id int64) (int, model.Note, bool) {
	for i, n := range g.notes[userID] {
		if n.ID == id {
			return i, n, true
		}
	}
	return -1, model.Note{}, false
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid note ID"))
		return 0, false
	}
	return id, true
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var req model.NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return "", false
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse(errContentRequired.Error()))
		return "", false
	}
	return req.Content, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}
