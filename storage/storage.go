// Package storage opens the attendance repositories of the configured database engine.
package storage

import (
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/storage/database"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
	"github.com/trezcool/masomo-attendance/storage/database/sqlxrepos"
)

const EngineMemory = "memory"

type Storage struct {
	Attendance attendance.Repository
	Roster     attendance.Roster

	// DB is nil with the memory engine.
	DB *sqlx.DB
}

// Open opens the database selected by conf.Database.Engine.
// Postgres databases are created when missing and migrated when migrate is set.
func Open(conf *core.Config, migrate bool) (*Storage, error) {
	if conf.Database.Engine == EngineMemory {
		db := inmemdb.Open()
		return &Storage{
			Attendance: inmemdb.NewAttendanceRepository(db),
			Roster:     inmemdb.NewRosterRepository(db),
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Storage{
		Attendance: sqlxrepos.NewAttendanceRepository(db),
		Roster:     sqlxrepos.NewRosterRepository(db),
		DB:         db,
	}, nil
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
