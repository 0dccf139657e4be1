package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
)

const (
	TenantID      = "0b6f1f0e-4bde-4b6e-9a43-7c1c0a6b1d01"
	OtherTenantID = "7d2c3e4f-1a2b-4c3d-8e9f-0a1b2c3d4e5f"
	ClassA        = "c1a55a00-0000-4000-8000-00000000000a"
	ClassB        = "c1a55b00-0000-4000-8000-00000000000b"
	Teacher       = "7eac4e70-0000-4000-8000-000000000001"
)

// NewValidator returns a validator and translator set up like the API does it.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

// School is a small tenant: class A (section "A") holds Alice, Bob and Carol,
// class B (no section) holds Dan. Stranger belongs to another tenant.
type School struct {
	DB                               *inmemdb.DB
	ClassA, ClassB                   attendance.Class
	Alice, Bob, Carol, Dan, Stranger attendance.Student
}

// Since is the date every fixture enrollment starts on.
var Since = core.NewDate(2024, time.January, 1)

func SeedSchool(db *inmemdb.DB) School {
	s := School{DB: db}
	s.ClassA = db.AddClass(TenantID, ClassA, "Grade 5", "A")
	s.ClassB = db.AddClass(TenantID, ClassB, "Grade 6", "")

	s.Alice = db.AddStudent(TenantID, "5a000000-0000-4000-8000-000000000001", "STU-001", "Alice Mwamba")
	s.Bob = db.AddStudent(TenantID, "5a000000-0000-4000-8000-000000000002", "STU-002", "Bob Kalala")
	s.Carol = db.AddStudent(TenantID, "5a000000-0000-4000-8000-000000000003", "STU-003", "Carol Ilunga")
	s.Dan = db.AddStudent(TenantID, "5a000000-0000-4000-8000-000000000004", "STU-004", "Dan Tshala")
	s.Stranger = db.AddStudent(OtherTenantID, "5a000000-0000-4000-8000-000000000005", "OTH-001", "Eve Kabila")

	for _, st := range []attendance.Student{s.Alice, s.Bob, s.Carol} {
		db.Enroll(TenantID, st.ID, ClassA, Since)
	}
	db.Enroll(TenantID, s.Dan.ID, ClassB, Since)
	return s
}

// Mark records a single mark, failing the test on error.
func Mark(t *testing.T, rec attendance.Recorder, studentID, classID string, date core.Date, status attendance.Status) attendance.Event {
	t.Helper()
	evt, err := rec.Mark(context.Background(), TenantID, attendance.MarkInput{
		StudentID: studentID,
		ClassID:   classID,
		Date:      date,
		Status:    status,
		MarkedBy:  Teacher,
	})
	if err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	return evt
}

// FixedNow freezes attendance.NowFunc at now until the test ends.
func FixedNow(t *testing.T, now time.Time) {
	t.Helper()
	attendance.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { attendance.NowFunc = time.Now })
}
