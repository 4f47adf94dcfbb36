package mysql

import (
	"predmaint/internal/model"
)

// ToRunDomain converts a MySQL SimulationRun row to the domain model
func ToRunDomain(row *SimulationRun) *model.SimulationRun {
	if row == nil {
		return nil
	}

	return &model.SimulationRun{
		ID:     row.RunID,
		Status: model.RunStatus(row.Status),
		Params: model.RunParams{
			Machines:    row.Machines,
			Days:        row.Days,
			StepMinutes: row.StepMinutes,
			Seed:        row.Seed,
			Start:       row.StartTime,
		},
		MachinesDone:  row.MachinesDone,
		Rows:          row.RowsWritten,
		FailureEvents: row.FailureEvents,
		OutputPath:    row.OutputPath,
		Error:         row.Error,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		StartedAt:     row.StartedAt,
		CompletedAt:   row.CompletedAt,
	}
}

// FromRunDomain converts a domain SimulationRun to its MySQL row
func FromRunDomain(run *model.SimulationRun) *SimulationRun {
	if run == nil {
		return nil
	}

	return &SimulationRun{
		RunID:         run.ID,
		Status:        string(run.Status),
		Machines:      run.Params.Machines,
		Days:          run.Params.Days,
		StepMinutes:   run.Params.StepMinutes,
		Seed:          run.Params.Seed,
		StartTime:     run.Params.Start,
		MachinesDone:  run.MachinesDone,
		RowsWritten:   run.Rows,
		FailureEvents: run.FailureEvents,
		OutputPath:    run.OutputPath,
		Error:         run.Error,
		CreatedAt:     run.CreatedAt,
		UpdatedAt:     run.UpdatedAt,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
	}
}

// ToFailureEventDomain converts a MySQL FailureEvent row to the domain model
func ToFailureEventDomain(row *FailureEvent) *model.FailureEvent {
	if row == nil {
		return nil
	}

	return &model.FailureEvent{
		MachineID:   row.MachineID,
		Timestamp:   row.EventTime,
		HealthScore: row.HealthScore,
	}
}
