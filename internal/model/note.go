package model

import (
	"bytes"
	"encoding/json"
)

// Note represents a single note owned by the authenticated user.
type Note struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// Edited reports whether the note was modified after creation.
func (n Note) Edited() bool {
	return !n.UpdatedAt.IsZero() && !n.UpdatedAt.Equal(n.CreatedAt.Time)
}

// NoteRequest represents a create or update request body.
type NoteRequest struct {
	Content string `json:"content"`
}

// NotesResponse represents the list response of GET /api/notes.
type NotesResponse struct {
	Notes []Note `json:"notes"`
}

// DecodeNotes decodes a {"notes": [...]} list response. A bare JSON array is
// accepted as well. The result is never nil.
func DecodeNotes(data []byte) ([]Note, error) {
	var notes []Note
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &notes); err != nil {
			return nil, err
		}
	} else {
		var resp NotesResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, err
		}
		notes = resp.Notes
	}

	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// noteEnvelope is the wrapped form {"note": {...}} some gateways reply with.
type noteEnvelope struct {
	Note *Note `json:"note"`
}

// DecodeNote decodes a note that may be bare or wrapped in a "note" envelope.
func DecodeNote(data []byte) (Note, error) {
	var env noteEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Note{}, err
	}
	if env.Note != nil {
		return *env.Note, nil
	}

	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return Note{}, err
	}
	return n, nil
}
