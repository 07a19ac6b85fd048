package handler

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mininotes/mininotes-go/internal/api"
	"github.com/mininotes/mininotes-go/internal/model"
	"github.com/mininotes/mininotes-go/internal/service"
)

// NoteFetcher reads a single note from the gateway.
type NoteFetcher interface {
	GetNote(ctx context.Context, id int64) (model.Note, error)
}

// NotesHandler handles the note commands.
type NotesHandler struct {
	notes   *service.NotesViewModel
	fetcher NoteFetcher
	console *Console
}

// NewNotesHandler creates a new NotesHandler.
func NewNotesHandler(notes *service.NotesViewModel, fetcher NoteFetcher, console *Console) *NotesHandler {
	return &NotesHandler{notes: notes, fetcher: fetcher, console: console}
}

// HandleList handles "notes list".
func (h *NotesHandler) HandleList(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return ErrUsage
	}

	notes, err := h.notes.LoadAll(ctx)
	if err != nil {
		return withBanner(h.notes.State().Error, err)
	}

	if len(notes) == 0 {
		h.console.Println(msgNoNotes)
		return nil
	}

	for i, n := range notes {
		if i > 0 {
			h.console.Println()
		}
		renderNote(h.console.out, n)
	}
	return nil
}

// HandleShow handles "notes show <id>".
func (h *NotesHandler) HandleShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	note, err := h.fetcher.GetNote(ctx, id)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %d", service.ErrNoteNotFound, id)
		}
		return err
	}

	renderNote(h.console.out, note)
	return nil
}

// HandleAdd handles "notes add <text...>".
func (h *NotesHandler) HandleAdd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	h.notes.SetDraft(strings.Join(args, " "))
	note, err := h.notes.SubmitDraft(ctx)
	if err != nil {
		return withBanner(h.notes.State().Error, err)
	}

	h.console.Printf("Created note %d\n", note.ID)
	return nil
}

// HandleEdit handles "notes edit <id> <text...>".
func (h *NotesHandler) HandleEdit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	if _, err := h.notes.LoadAll(ctx); err != nil {
		return withBanner(h.notes.State().Error, err)
	}
	if err := h.notes.StartEditing(id); err != nil {
		return err
	}
	h.notes.SetEditContent(strings.Join(args[1:], " "))

	note, err := h.notes.Update(ctx, id, h.notes.State().EditContent)
	if err != nil {
		return withBanner(h.notes.State().Error, err)
	}

	h.console.Printf("Updated note %d\n", note.ID)
	return nil
}

// HandleDelete handles "notes delete [-y] <id>".
func (h *NotesHandler) HandleDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("y", false, "delete without asking")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return ErrUsage
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	if _, err := h.notes.LoadAll(ctx); err != nil {
		return withBanner(h.notes.State().Error, err)
	}

	confirm := func(n model.Note) bool {
		renderNote(h.console.out, n)
		return h.console.Confirm(msgConfirmDelete)
	}
	if *yes {
		confirm = func(model.Note) bool { return true }
	}

	err = h.notes.Delete(ctx, id, confirm)
	switch {
	case errors.Is(err, service.ErrDeleteCancelled):
		h.console.Println("Cancelled.")
		return nil
	case err != nil:
		return withBanner(h.notes.State().Error, err)
	}

	h.console.Printf("Deleted note %d\n", id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: note id must be a positive number, got %q", ErrUsage, s)
	}
	return id, nil
}
