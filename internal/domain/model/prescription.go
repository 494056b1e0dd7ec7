package model

import "time"

// Prescription represents one prescribed medication for a user.
type Prescription struct {
	ID           string
	OwnerID      string
	Medication   string
	Dosage       string
	Instructions string
	Status       PrescriptionStatus
	RefillsLeft  int
	PrescribedAt time.Time
	ExpiresAt    time.Time
	SyncStatus   SyncStatus
}

// IsActive reports whether the prescription is still being taken.
func (p Prescription) IsActive() bool {
	return p.Status == PrescriptionStatusActive
}

// DaysSincePrescribed returns the number of days since the prescription
// was issued.
func (p Prescription) DaysSincePrescribed() int {
	return int(time.Since(p.PrescribedAt).Hours() / 24)
}
