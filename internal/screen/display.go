package screen

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"example.com/stepcount/internal/domain"
)

// Messages shown in the text area.
const (
	MsgSensorUnavailable = "Step counter sensor not available on this device"
	MsgInitialized       = "Step counter initialized. Start walking!"
	MsgPermissionDenied  = "Step counter permission denied"
)

// Display is the single text area of the screen. Each SetText replaces the previous text.
type Display interface {
	SetText(string)
}

// TextView prints every text it is given to w and remembers the last one.
type TextView struct {
	mu   sync.Mutex
	w    io.Writer
	text string
}

// NewTextView writes to w; a nil w only records.
func NewTextView(w io.Writer) *TextView {
	return &TextView{w: w}
}

func (v *TextView) SetText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.text = text
	if v.w != nil {
		fmt.Fprintln(v.w, text)
	}
}

// Text returns what the view currently shows.
func (v *TextView) Text() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text
}

// FormatSteps renders the live counter.
func FormatSteps(count int) string {
	return fmt.Sprintf("Steps: %d", count)
}

// FormatListing renders records one per line under an "All Steps:" heading.
func FormatListing(counts []domain.StepCount) string {
	lines := make([]string, 0, len(counts))
	for _, sc := range counts {
		lines = append(lines, fmt.Sprintf("ID: %d, Steps: %d", sc.ID, sc.Count))
	}
	return "All Steps:\n" + strings.Join(lines, "\n")
}
