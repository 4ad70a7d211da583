package attendance

import "time"

// Status is a student's meal attendance status for a day.
type Status string

const (
	StatusHadir Status = "hadir"
	StatusIzin  Status = "izin"
	StatusSakit Status = "sakit"
	StatusAlpha Status = "alpha"
)

func (s Status) Valid() bool {
	switch s {
	case StatusHadir, StatusIzin, StatusSakit, StatusAlpha:
		return true
	}
	return false
}

type (
	// Student is a server-side fact, fetched read-only; the client never
	// maintains a local mirror.
	Student struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Class    string `json:"class,omitempty"`
	}

	// Entry is one student's status within a Record.
	Entry struct {
		StudentID string `json:"student_id" validate:"required"`
		Status    Status `json:"status" validate:"required"`
		Note      string `json:"note,omitempty"`
	}

	// Record is a full attendance submission for a school and date.
	Record struct {
		SchoolID   string  `json:"school_id" validate:"required"`
		Date       string  `json:"date" validate:"required,meal_date"`
		Entries    []Entry `json:"entries" validate:"required,min=1,dive"`
		RecordedBy string  `json:"recorded_by,omitempty"`
	}

	// Summary is the backend's aggregate for a school and date.
	Summary struct {
		SchoolID string    `json:"school_id"`
		Date     string    `json:"date"`
		Present  int       `json:"present"`
		Excused  int       `json:"excused"`
		Sick     int       `json:"sick"`
		Absent   int       `json:"absent"`
		Total    int       `json:"total"`
		Updated  time.Time `json:"updated_at,omitempty"`
	}
)
