package domain

import "time"

// Milestone is a dated delivery marker on a project. Invoice batches may
// reference one, and the weekly project report lists the milestones falling
// due in its window.
type Milestone struct {
	ID        string
	ProjectID string
	Title     string
	DueAt     time.Time
}
