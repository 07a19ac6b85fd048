package handler

import (
	"fmt"
	"io"
	"strings"

	"github.com/mininotes/mininotes-go/internal/model"
)

const displayTimeLayout = "Jan 2, 2006 15:04"

func renderNote(w io.Writer, n model.Note) {
	lines := strings.Split(n.Content, "\n")
	fmt.Fprintf(w, "[%d] %s\n", n.ID, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "    %s\n", line)
	}

	fmt.Fprintf(w, "    Created: %s\n", formatTime(n.CreatedAt))
	if n.Edited() {
		fmt.Fprintf(w, "    Updated: %s\n", formatTime(n.UpdatedAt))
	}
}

func formatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.Local().Format(displayTimeLayout)
}
