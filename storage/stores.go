package storage

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/storage/database"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

// Stores are the repositories of the configured database engine.
// DB is nil for the in-memory engine.
type Stores struct {
	DB         *sqlx.DB
	Users      user.Repository
	Schools    school.Repository
	Attendance attendance.Repository
}

// Open sets up the configured engine. A missing postgres database is created.
func Open(conf *core.Config) (*Stores, error) {
	if conf.Database.InMemory() {
		db := inmemdb.Open()
		return &Stores{
			Users:      inmemdb.NewUserRepository(db),
			Schools:    inmemdb.NewSchoolRepository(db),
			Attendance: inmemdb.NewAttendanceRepository(db),
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	return &Stores{
		DB:         db,
		Users:      sqlxrepos.NewUserRepository(db),
		Schools:    sqlxrepos.NewSchoolRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
	}, nil
}

// Migrate applies the pending migrations; there is nothing to migrate in memory.
func (s *Stores) Migrate() error {
	if s.DB == nil {
		return nil
	}
	return errors.Wrap(database.Migrate(s.DB.DB), "migrating database")
}

// TxDB returns the database attendance commits run their transaction on, nil in memory.
func (s *Stores) TxDB() core.DB {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
