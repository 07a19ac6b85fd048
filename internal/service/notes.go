package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mininotes/mininotes-go/internal/api"
	"github.com/mininotes/mininotes-go/internal/model"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrEmptyContent    = fmt.Errorf("%w: note content is empty", ErrValidation)
	ErrNoteNotFound    = errors.New("note not found")
	ErrDeleteCancelled = errors.New("delete cancelled")
)

const (
	msgLoadFailed   = "Failed to load notes. Please try again."
	msgCreateFailed = "Failed to create note. Please try again."
	msgUpdateFailed = "Failed to update note. Please try again."
	msgDeleteFailed = "Failed to delete note. Please try again."
)

// NotesAPI is the subset of the gateway client the notes view needs.
type NotesAPI interface {
	ListNotes(ctx context.Context) ([]model.Note, error)
	CreateNote(ctx context.Context, content string) (model.Note, error)
	UpdateNote(ctx context.Context, id int64, content string) (model.Note, error)
	DeleteNote(ctx context.Context, id int64) error
}

// SessionEvents delivers session changes.
type SessionEvents interface {
	Subscribe(fn func(SessionEvent)) func()
}

// Confirmer asks the user whether note should really be deleted.
type Confirmer func(note model.Note) bool

// NotesState is a snapshot of the notes view.
type NotesState struct {
	Notes       []model.Note
	Loading     bool
	Creating    bool
	Loaded      bool
	Draft       string
	EditingID   *int64
	EditContent string
	Error       string
}

// Editing reports whether id is the note in edit mode.
func (s NotesState) Editing(id int64) bool {
	return s.EditingID != nil && *s.EditingID == id
}

// NotesViewModel holds the authenticated user's notes, newest first, together
// with draft and edit state. It is reset whenever the session ends or another
// one begins.
type NotesViewModel struct {
	api NotesAPI

	mu          sync.Mutex
	state       NotesState
	generation  uint64
	listeners   []stateListener
	nextID      int
	unsubscribe func()
}

type stateListener struct {
	id int
	fn func(NotesState)
}

// NewNotesViewModel creates a NotesViewModel. When sessions is not nil the
// view resets itself whenever a session ends or a new one begins.
func NewNotesViewModel(notesAPI NotesAPI, sessions SessionEvents) *NotesViewModel {
	vm := &NotesViewModel{api: notesAPI}
	if sessions != nil {
		vm.unsubscribe = sessions.Subscribe(func(evt SessionEvent) {
			if evt.Cleared() || evt.Reason == ReasonLogin || evt.Reason == ReasonRegister {
				vm.reset()
			}
		})
	}
	return vm
}

// Close detaches the view from session events.
func (vm *NotesViewModel) Close() {
	if vm.unsubscribe != nil {
		vm.unsubscribe()
		vm.unsubscribe = nil
	}
}

// State returns a snapshot of the current state.
func (vm *NotesViewModel) State() NotesState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.snapshotLocked()
}

// Subscribe registers fn for state changes and returns a function that
// removes it. Listeners are never called with the lock held.
func (vm *NotesViewModel) Subscribe(fn func(NotesState)) func() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.nextID++
	id := vm.nextID
	vm.listeners = append(vm.listeners, stateListener{id: id, fn: fn})

	return func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		for i, l := range vm.listeners {
			if l.id == id {
				vm.listeners = append(vm.listeners[:i:i], vm.listeners[i+1:]...)
				return
			}
		}
	}
}

// LoadAll replaces the collection with the gateway's list. On failure the
// previous collection is kept and Error is set.
func (vm *NotesViewModel) LoadAll(ctx context.Context) ([]model.Note, error) {
	gen := vm.mutate(func(s *NotesState) {
		s.Loading = true
		s.Error = ""
	})

	notes, err := vm.api.ListNotes(ctx)

	vm.apply(gen, func(s *NotesState) {
		s.Loading = false
		if err != nil {
			s.Error = failureMessage(err, msgLoadFailed)
			return
		}
		s.Notes = notes
		s.Loaded = true
	})

	if err != nil {
		log.Debug().Err(err).Msg("load notes failed")
		return nil, err
	}
	return append([]model.Note{}, notes...), nil
}

// SetDraft stores the text of the note being composed.
func (vm *NotesViewModel) SetDraft(text string) {
	vm.mutate(func(s *NotesState) { s.Draft = text })
}

// SubmitDraft creates a note from the current draft.
func (vm *NotesViewModel) SubmitDraft(ctx context.Context) (model.Note, error) {
	return vm.Create(ctx, vm.State().Draft)
}

// Create posts a new note and inserts it at the front of the collection.
// Content is trimmed; whitespace-only content is rejected without contacting
// the gateway. The draft is cleared only on success.
func (vm *NotesViewModel) Create(ctx context.Context, content string) (model.Note, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return model.Note{}, ErrEmptyContent
	}

	gen := vm.mutate(func(s *NotesState) {
		s.Creating = true
		s.Error = ""
	})

	note, err := vm.api.CreateNote(ctx, trimmed)

	vm.apply(gen, func(s *NotesState) {
		s.Creating = false
		if err != nil {
			s.Draft = content
			s.Error = failureMessage(err, msgCreateFailed)
			return
		}
		notes := make([]model.Note, 0, len(s.Notes)+1)
		notes = append(notes, note)
		for _, n := range s.Notes {
			if n.ID != note.ID {
				notes = append(notes, n)
			}
		}
		s.Notes = notes
		s.Draft = ""
	})

	if err != nil {
		log.Debug().Err(err).Msg("create note failed")
		return model.Note{}, err
	}
	return note, nil
}

// StartEditing puts the note with id into edit mode, seeded with its content.
// Any other edit in progress is abandoned.
func (vm *NotesViewModel) StartEditing(id int64) error {
	var found bool
	vm.mutate(func(s *NotesState) {
		idx := indexOf(s.Notes, id)
		if idx < 0 {
			return
		}
		found = true
		s.EditingID = &id
		s.EditContent = s.Notes[idx].Content
	})
	if !found {
		return ErrNoteNotFound
	}
	return nil
}

// SetEditContent replaces the text of the note in edit mode.
func (vm *NotesViewModel) SetEditContent(text string) {
	vm.mutate(func(s *NotesState) {
		if s.EditingID != nil {
			s.EditContent = text
		}
	})
}

// CancelEditing leaves edit mode without saving.
func (vm *NotesViewModel) CancelEditing() {
	vm.mutate(func(s *NotesState) {
		s.EditingID = nil
		s.EditContent = ""
	})
}

// Update saves content for the note with id and replaces it in place. On
// failure edit mode stays active with the unsaved text.
func (vm *NotesViewModel) Update(ctx context.Context, id int64, content string) (model.Note, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return model.Note{}, ErrEmptyContent
	}

	var found bool
	gen := vm.mutate(func(s *NotesState) {
		if indexOf(s.Notes, id) < 0 {
			return
		}
		found = true
		s.EditingID = &id
		s.EditContent = content
		s.Error = ""
	})
	if !found {
		return model.Note{}, ErrNoteNotFound
	}

	note, err := vm.api.UpdateNote(ctx, id, trimmed)
	if err == nil && note.ID != id {
		err = fmt.Errorf("%w: gateway returned note %d for %d", api.ErrNetworkOrServer, note.ID, id)
	}

	vm.apply(gen, func(s *NotesState) {
		if err != nil {
			s.Error = failureMessage(err, msgUpdateFailed)
			return
		}
		if idx := indexOf(s.Notes, id); idx >= 0 {
			s.Notes[idx] = note
		}
		if s.Editing(id) {
			s.EditingID = nil
			s.EditContent = ""
		}
	})

	if err != nil {
		log.Debug().Err(err).Int64("note_id", id).Msg("update note failed")
		return model.Note{}, err
	}
	return note, nil
}

// Delete removes the note with id after confirm approves it. A nil confirm
// counts as declined. The collection is only changed once the gateway has
// accepted the deletion.
func (vm *NotesViewModel) Delete(ctx context.Context, id int64, confirm Confirmer) error {
	vm.mu.Lock()
	idx := indexOf(vm.state.Notes, id)
	var note model.Note
	if idx >= 0 {
		note = vm.state.Notes[idx]
	}
	vm.mu.Unlock()

	if idx < 0 {
		return ErrNoteNotFound
	}
	if confirm == nil || !confirm(note) {
		return ErrDeleteCancelled
	}

	gen := vm.mutate(func(s *NotesState) { s.Error = "" })

	err := vm.api.DeleteNote(ctx, id)

	vm.apply(gen, func(s *NotesState) {
		if err != nil {
			s.Error = failureMessage(err, msgDeleteFailed)
			return
		}
		if i := indexOf(s.Notes, id); i >= 0 {
			s.Notes = append(s.Notes[:i:i], s.Notes[i+1:]...)
		}
		if s.Editing(id) {
			s.EditingID = nil
			s.EditContent = ""
		}
	})

	if err != nil {
		log.Debug().Err(err).Int64("note_id", id).Msg("delete note failed")
		return err
	}
	return nil
}

// ClearError dismisses the inline error.
func (vm *NotesViewModel) ClearError() {
	vm.mutate(func(s *NotesState) { s.Error = "" })
}

// reset drops everything belonging to the ended session. Results of calls
// still in flight are discarded.
func (vm *NotesViewModel) reset() {
	vm.mu.Lock()
	vm.generation++
	vm.state = NotesState{}
	vm.mu.Unlock()
	vm.notify()
}

// mutate applies fn under the lock, notifies listeners and returns the
// generation fn ran in.
func (vm *NotesViewModel) mutate(fn func(*NotesState)) uint64 {
	vm.mu.Lock()
	fn(&vm.state)
	gen := vm.generation
	vm.mu.Unlock()
	vm.notify()
	return gen
}

// apply is mutate for results of a call started in generation gen. It is a
// no-op once the view has been reset since.
func (vm *NotesViewModel) apply(gen uint64, fn func(*NotesState)) {
	vm.mu.Lock()
	if vm.generation != gen {
		vm.mu.Unlock()
		return
	}
	fn(&vm.state)
	vm.mu.Unlock()
	vm.notify()
}

func (vm *NotesViewModel) notify() {
	vm.mu.Lock()
	snapshot := vm.snapshotLocked()
	listeners := append([]stateListener(nil), vm.listeners...)
	vm.mu.Unlock()

	for _, l := range listeners {
		l.fn(snapshot)
	}
}

func (vm *NotesViewModel) snapshotLocked() NotesState {
	s := vm.state
	s.Notes = append([]model.Note(nil), vm.state.Notes...)
	if s.Notes == nil {
		s.Notes = []model.Note{}
	}
	if vm.state.EditingID != nil {
		id := *vm.state.EditingID
		s.EditingID = &id
	}
	return s
}

func indexOf(notes []model.Note, id int64) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// failureMessage picks the inline error for a failed call. An expired session
// is reported through the session store instead.
func failureMessage(err error, fallback string) string {
	if errors.Is(err, api.ErrAuthorizationExpired) {
		return ""
	}
	return fallback
}
