package enums

// SlotWindow names one of the fixed delivery windows of a day.
type SlotWindow string

const (
	SlotWindowMorning   SlotWindow = "MORNING"
	SlotWindowAfternoon SlotWindow = "AFTERNOON"
	SlotWindowEvening   SlotWindow = "EVENING"
)

// chronological
var slotWindows = newSet("slot window", SlotWindowMorning, SlotWindowAfternoon, SlotWindowEvening)

func (s SlotWindow) String() string { return string(s) }
func (s SlotWindow) IsValid() bool  { return slotWindows.has(s) }

func ParseSlotWindow(value string) (SlotWindow, error) {
	return slotWindows.parse(value)
}

// Rank orders windows within a day; unknown windows sort last.
func (s SlotWindow) Rank() int {
	return slotWindows.index(s)
}

// SlotWindows returns the windows of a day in chronological order.
func SlotWindows() []SlotWindow {
	return slotWindows.all()
}
