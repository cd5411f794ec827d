package slots

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
)

// DateLayout is the calendar-date format used in slot ids and requests.
const DateLayout = "2006-01-02"

// ID builds the date_window key of a slot, e.g. 2026-10-15_MORNING.
func ID(date string, window enums.SlotWindow) string {
	return date + "_" + string(window)
}

// ParseID splits a slot id back into its date and window.
func ParseID(id string) (string, enums.SlotWindow, error) {
	idx := strings.LastIndex(id, "_")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid slot id %q", id)
	}
	date, rawWindow := id[:idx], id[idx+1:]
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", "", fmt.Errorf("invalid slot id %q: %w", id, err)
	}
	window, err := enums.ParseSlotWindow(rawWindow)
	if err != nil {
		return "", "", fmt.Errorf("invalid slot id %q: %w", id, err)
	}
	return date, window, nil
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "date must be formatted as YYYY-MM-DD").
			WithDetails(map[string]any{"date": raw})
	}
	return d, nil
}

// ParseWindow validates a window name.
func ParseWindow(raw string) (enums.SlotWindow, error) {
	w, err := enums.ParseSlotWindow(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery window").
			WithDetails(map[string]any{"window": raw, "allowed": enums.SlotWindows()})
	}
	return w, nil
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// DateRange lists days consecutive dates starting at from.
func DateRange(from time.Time, days int) []string {
	out := make([]string, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, from.AddDate(0, 0, i).Format(DateLayout))
	}
	return out
}
