package mysql

import "predmaint/pkg/store/mysql/model"

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	Run          *RunRepository
	FailureEvent *FailureEventRepository
}

// NewRepository creates a new MySQL repository with all sub-repositories and
// migrates the schema. The service owns its two tables outright, so gorm's
// migrator replaces a separate migration pipeline.
func NewRepository(dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}

	if err := ds.db.AutoMigrate(&model.SimulationRun{}, &model.FailureEvent{}); err != nil {
		ds.Close()
		return nil, err
	}

	return &Repository{
		ds:           ds,
		Run:          NewRunRepository(ds),
		FailureEvent: NewFailureEventRepository(ds),
	}, nil
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
