package inmemdb

import (
	"strings"
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type (
	// DB is a process local store holding the attendance tables and the
	// enrollment tables they are joined with.
	DB struct {
		mutex sync.RWMutex

		students    map[string]student
		classes     map[string]class
		enrollments []enrollment

		events     map[string]*attendance.Event // {id: event}
		eventKeys  map[eventKey]string          // {key: id}
		amendments []attendance.Amendment
	}

	eventKey struct {
		tenantID string
		attendance.Key
	}

	student struct {
		tenantID string
		attendance.Student
		active bool
	}

	class struct {
		tenantID string
		attendance.Class
	}

	enrollment struct {
		tenantID    string
		studentID   string
		classID     string
		active      bool
		enrolledOn  core.Date
		withdrawnOn core.Date
	}
)

func Open() *DB {
	return &DB{
		students:  make(map[string]student),
		classes:   make(map[string]class),
		events:    make(map[string]*attendance.Event),
		eventKeys: make(map[eventKey]string),
	}
}

// AddStudent registers an active student of the tenant.
func (db *DB) AddStudent(tenantID, id, code, name string) attendance.Student {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	s := attendance.Student{ID: id, Code: code, Name: name}
	db.students[id] = student{tenantID: tenantID, Student: s, active: true}
	return s
}

// DeactivateStudent marks a student as no longer active in the tenant.
func (db *DB) DeactivateStudent(id string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if s, ok := db.students[id]; ok {
		s.active = false
		db.students[id] = s
	}
}

// AddClass registers a class. An empty section means the class has none.
func (db *DB) AddClass(tenantID, id, name, section string) attendance.Class {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c := attendance.Class{ID: id, Name: name}
	if section != "" {
		c.Section = null.StringFrom(section)
	}
	db.classes[id] = class{tenantID: tenantID, Class: c}
	return c
}

// Enroll actively enrolls a student in a class from the given date on.
func (db *DB) Enroll(tenantID, studentID, classID string, from core.Date) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.enrollments = append(db.enrollments, enrollment{
		tenantID:   tenantID,
		studentID:  studentID,
		classID:    classID,
		active:     true,
		enrolledOn: from,
	})
}

// Withdraw ends the active enrollments of a student in a class on the given date.
func (db *DB) Withdraw(studentID, classID string, on core.Date) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for i, e := range db.enrollments {
		if e.studentID == studentID && e.classID == classID && e.withdrawnOn.IsZero() {
			db.enrollments[i].withdrawnOn = on
		}
	}
}

func (e enrollment) activeOn(d core.Date) bool {
	if !e.active || d.Before(e.enrolledOn) {
		return false
	}
	return e.withdrawnOn.IsZero() || d.Before(e.withdrawnOn)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
