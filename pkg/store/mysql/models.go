package mysql

import "predmaint/pkg/store/mysql/model"

// Re-export database model types so repositories and callers in this package
// can refer to them without the extra import.
type (
	SimulationRun = model.SimulationRun
	FailureEvent  = model.FailureEvent
)
