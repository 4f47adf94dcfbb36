package simulator

import "time"

// HealthThreshold is the critical health level. A machine entering the band
// below it counts as a failure event at exactly the crossing row.
const HealthThreshold = 0.3

// DeriveFailures stamps the Failed flag over rows, which must be sorted by
// (machine id, timestamp). A row is a failure event when its health is low
// and the machine's previous row was not; the first row of each machine
// compares against an implicit healthy predecessor. Running it again on
// already-stamped rows produces the same flags.
func DeriveFailures(rows []Reading) {
	prevLow := false
	prevMachine := -1

	for i := range rows {
		if rows[i].MachineID != prevMachine {
			prevMachine = rows[i].MachineID
			prevLow = false
		}

		low := rows[i].HealthScore < HealthThreshold
		if low && !prevLow {
			rows[i].Failed = 1
		} else {
			rows[i].Failed = 0
		}
		prevLow = low
	}
}

// FailureEvent is one not-low to low crossing, the unit the run reports and
// the store persist.
type FailureEvent struct {
	MachineID   int
	Timestamp   time.Time
	HealthScore float64
}

// FailureEvents extracts the flagged rows of a derived dataset.
func FailureEvents(rows []Reading) []FailureEvent {
	var events []FailureEvent
	for i := range rows {
		if rows[i].Failed == 1 {
			events = append(events, FailureEvent{
				MachineID:   rows[i].MachineID,
				Timestamp:   rows[i].Timestamp,
				HealthScore: rows[i].HealthScore,
			})
		}
	}
	return events
}

// Summary aggregates a derived dataset for reporting: total rows, total
// failure events and the per-machine event counts.
type Summary struct {
	Rows          int
	FailureEvents int
	PerMachine    map[int]int
}

// Summarize walks a derived dataset once and counts events.
func Summarize(rows []Reading) Summary {
	s := Summary{
		Rows:       len(rows),
		PerMachine: make(map[int]int),
	}
	for i := range rows {
		if _, ok := s.PerMachine[rows[i].MachineID]; !ok {
			s.PerMachine[rows[i].MachineID] = 0
		}
		if rows[i].Failed == 1 {
			s.FailureEvents++
			s.PerMachine[rows[i].MachineID]++
		}
	}
	return s
}
