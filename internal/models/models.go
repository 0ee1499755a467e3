package models

import "time"

// Lead is a row of the hosted leads table. The voice agent owns these rows;
// the dashboard never writes them outside of the import tool.
// Every text column is nullable.
type Lead struct {
	ID int64 `gorm:"primaryKey" db:"id" json:"id"`

	Name        *string `db:"name" json:"name"`
	PhoneNumber *string `db:"phone_number" json:"phone_number"`
	Email       *string `db:"email" json:"email"`

	ReasonForCall      *string `db:"reason_for_call" json:"reason_for_call"`
	Summary            *string `db:"summary" json:"summary"`
	AppointmentDetails *string `db:"appointment_details" json:"appointment_details"`
	CalendarLink       *string `db:"calendar_link" json:"calendar_link"`
	AppointmentStart   *string `db:"appointment_start" json:"appointment_start"`
	AppointmentEnd     *string `db:"appointment_end" json:"appointment_end"`
	RescheduleLink     *string `db:"reschedule_link" json:"reschedule_link"`

	// "hot", "warm", "cold" in any case, "optional", or nothing
	LeadWarmth *string `gorm:"index" db:"lead_warmth" json:"lead_warmth"`

	CreatedAt time.Time  `gorm:"index" db:"created_at" json:"created_at"`
	Timestamp *time.Time `db:"timestamp" json:"timestamp"`
}

func (Lead) TableName() string { return "leads" }

// SessionFlag is a persisted key/value flag, one row per browser session.
type SessionFlag struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (SessionFlag) TableName() string { return "sessions" }
