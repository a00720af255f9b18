package panel

// Mode is a modulation selectable on the panel.
type Mode struct {
	Label string
	Order int
}

// Modes in selection order.
var Modes = [...]Mode{
	{Label: "BPSK", Order: 2},
	{Label: "QPSK", Order: 4},
	{Label: "8PSK", Order: 8},
}

// ModeByLabel returns mode with provided label.
func ModeByLabel(label string) (Mode, bool) {
	for _, m := range Modes {
		if m.Label == label {
			return m, true
		}
	}
	return Mode{}, false
}

// ModeByIndex returns mode at provided selection index.
func ModeByIndex(i int) (Mode, bool) {
	if i < 0 || i >= len(Modes) {
		return Mode{}, false
	}
	return Modes[i], true
}

// ModeByOrder returns mode of provided modulation order.
func ModeByOrder(n int) (Mode, bool) {
	for _, m := range Modes {
		if m.Order == n {
			return m, true
		}
	}
	return Mode{}, false
}
