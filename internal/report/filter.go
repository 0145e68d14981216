package report

// FilterTablesBySignals returns a new Tables object containing only rows about
// the given signals: machines and their transitions and loops by FSM name,
// query rows by target signal or by the FSM they reference.
func FilterTablesBySignals(tables Tables, signals map[string]bool) Tables {
	if len(signals) == 0 {
		return EmptyTables()
	}
	out := EmptyTables()

	for _, row := range tables.FSMs {
		if signals[row.Name] {
			out.FSMs = append(out.FSMs, row)
		}
	}
	for _, row := range tables.Transitions {
		if signals[row.FSM] {
			out.Transitions = append(out.Transitions, row)
		}
	}
	for _, row := range tables.Loops {
		if signals[row.FSM] {
			out.Loops = append(out.Loops, row)
		}
	}
	for _, row := range tables.ActiveConditions {
		if signals[row.Signal] || signals[row.FSM] {
			out.ActiveConditions = append(out.ActiveConditions, row)
		}
	}
	for _, row := range tables.ActiveRanges {
		if signals[row.Signal] {
			out.ActiveRanges = append(out.ActiveRanges, row)
		}
	}
	for _, row := range tables.Resets {
		if signals[row.Signal] {
			out.Resets = append(out.Resets, row)
		}
	}

	return out
}
