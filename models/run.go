package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID           int64      `json:"id" db:"id"`
	Source       string     `json:"source" db:"source"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	CarsFound    int        `json:"cars_found" db:"cars_found"`
	CarsNew      int        `json:"cars_new" db:"cars_new"`
	CarsRejected int        `json:"cars_rejected" db:"cars_rejected"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
}

type SourceStats struct {
	Source            string     `json:"source" db:"source"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalCars         int        `json:"total_cars" db:"total_cars"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
