package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type rosterRepository struct {
	db *DB
}

var _ attendance.Roster = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) attendance.Roster {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) ActiveStudents(ctx context.Context, tenantID, classID string, on core.Date) ([]attendance.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("resolving roster", err)
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]attendance.Student, 0)
	if classID == "" {
		for _, s := range repo.db.students {
			if s.tenantID == tenantID && s.active {
				students = append(students, s.Student)
			}
		}
	} else {
		seen := make(map[string]bool)
		for _, e := range repo.db.enrollments {
			if e.tenantID != tenantID || e.classID != classID || !e.activeOn(on) || seen[e.studentID] {
				continue
			}
			if s, ok := repo.db.students[e.studentID]; ok && s.active {
				seen[e.studentID] = true
				students = append(students, s.Student)
			}
		}
	}

	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (repo *rosterRepository) GetClass(ctx context.Context, tenantID, classID string) (attendance.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classes[classID]; ok && c.tenantID == tenantID {
		return c.Class, nil
	}
	return attendance.Class{}, attendance.ErrClassNotFound
}
