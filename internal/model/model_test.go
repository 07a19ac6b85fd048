package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshalLayouts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", `"2024-03-05T10:20:30Z"`, time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"rfc3339 offset", `"2024-03-05T12:20:30+02:00"`, time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"fractional", `"2024-03-05T10:20:30.123456Z"`, time.Date(2024, 3, 5, 10, 20, 30, 123456000, time.UTC)},
		{"sql datetime", `"2024-03-05 10:20:30"`, time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"date only", `"2024-01-01"`, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal() unexpected error: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("Unmarshal() = %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestTimestampNullAndEmpty(t *testing.T) {
	for _, input := range []string{`null`, `""`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(input), &ts); err != nil {
			t.Fatalf("Unmarshal(%s) unexpected error: %v", input, err)
		}
		if !ts.IsZero() {
			t.Errorf("Unmarshal(%s) = %v, want zero", input, ts.Time)
		}
	}
}

func TestTimestampInvalid(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("Unmarshal() expected error for unrecognised timestamp")
	}
}

func TestTimestampMarshal(t *testing.T) {
	data, err := json.Marshal(Timestamp{})
	if err != nil {
		t.Fatalf("Marshal() unexpected error: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("Marshal(zero) = %s, want null", data)
	}

	ts := NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err = json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal() unexpected error: %v", err)
	}
	if string(data) != `"2024-01-01T00:00:00Z"` {
		t.Errorf("Marshal() = %s, want %q", data, "2024-01-01T00:00:00Z")
	}
}

func TestUserSurvivesReencoding(t *testing.T) {
	raw := `{"id":1,"email":"a@b.com","created_at":"2024-01-01"}`

	var first User
	if err := json.Unmarshal([]byte(raw), &first); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("Marshal() unexpected error: %v", err)
	}

	var second User
	if err := json.Unmarshal(encoded, &second); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}

	if second.ID != first.ID || second.Email != first.Email || !second.CreatedAt.Equal(first.CreatedAt.Time) {
		t.Errorf("re-encoded user = %+v, want %+v", second, first)
	}
}

func TestDecodeNote(t *testing.T) {
	t.Run("bare", func(t *testing.T) {
		n, err := DecodeNote([]byte(`{"id":5,"content":"hi","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}`))
		if err != nil {
			t.Fatalf("DecodeNote() unexpected error: %v", err)
		}
		if n.ID != 5 || n.Content != "hi" {
			t.Errorf("DecodeNote() = %+v, want id 5 content hi", n)
		}
		if n.UserID != nil {
			t.Errorf("DecodeNote() UserID = %v, want nil", *n.UserID)
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		n, err := DecodeNote([]byte(`{"note":{"id":7,"user_id":3,"content":"wrapped"}}`))
		if err != nil {
			t.Fatalf("DecodeNote() unexpected error: %v", err)
		}
		if n.ID != 7 || n.Content != "wrapped" {
			t.Errorf("DecodeNote() = %+v, want id 7 content wrapped", n)
		}
		if n.UserID == nil || *n.UserID != 3 {
			t.Errorf("DecodeNote() UserID = %v, want 3", n.UserID)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := DecodeNote([]byte(`not json`)); err == nil {
			t.Error("DecodeNote() expected error for invalid body")
		}
	})
}

func TestNoteEdited(t *testing.T) {
	created := NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	n := Note{CreatedAt: created, UpdatedAt: created}
	if n.Edited() {
		t.Error("Edited() = true for untouched note")
	}

	n.UpdatedAt = NewTimestamp(created.Add(time.Hour))
	if !n.Edited() {
		t.Error("Edited() = false for updated note")
	}
}

func TestDecodeNotes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []int64
	}{
		{"envelope", `{"notes":[{"id":5,"content":"hi"},{"id":4,"content":"older"}]}`, []int64{5, 4}},
		{"bare array", `[{"id":9,"content":"x"}]`, []int64{9}},
		{"null notes", `{"notes":null}`, []int64{}},
		{"empty object", `{}`, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := DecodeNotes([]byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeNotes() unexpected error: %v", err)
			}
			if notes == nil {
				t.Fatal("DecodeNotes() returned nil slice")
			}
			if len(notes) != len(tt.wantIDs) {
				t.Fatalf("DecodeNotes() len = %d, want %d", len(notes), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if notes[i].ID != id {
					t.Errorf("notes[%d].ID = %d, want %d", i, notes[i].ID, id)
				}
			}
		})
	}
}
