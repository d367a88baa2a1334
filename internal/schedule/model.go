package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

// Doctor is owned by the administration module; the scheduling core only
// reads it.
type Doctor struct {
	ID        uuid.UUID
	FullName  string
	Specialty string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleBlock is one recurring weekly availability range for a doctor.
type ScheduleBlock struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Weekday     time.Weekday
	Start       civil.TimeOfDay
	End         civil.TimeOfDay
	SlotMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScheduleException blocks a single date, either fully or by substituting a
// reduced working range for that day.
type ScheduleException struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	Date          civil.Date
	Reason        string
	OverrideStart *civil.TimeOfDay
	OverrideEnd   *civil.TimeOfDay
	CreatedAt     time.Time
}

// FullyBlocked reports whether the exception removes the whole date. An
// absent or empty override range counts as fully blocked.
func (e ScheduleException) FullyBlocked() bool {
	if e.OverrideStart == nil || e.OverrideEnd == nil {
		return true
	}
	return *e.OverrideStart >= *e.OverrideEnd
}
