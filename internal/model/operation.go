package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an operation.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPlanned  Status = "PLANNED"
	StatusExecuted Status = "EXECUTED"
	StatusFailed   Status = "FAILED"
)

// Statuses lists every lifecycle state in lifecycle order.
var Statuses = []Status{StatusPending, StatusPlanned, StatusExecuted, StatusFailed}

// ParseStatus maps a caller-supplied value onto a Status. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatusPending, true
	case "PLANNED":
		return StatusPlanned, true
	case "EXECUTED":
		return StatusExecuted, true
	case "FAILED":
		return StatusFailed, true
	default:
		return "", false
	}
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPlanned, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}

// Priority ranks how urgently an operation should be handled.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority maps a caller-supplied value onto its canonical Priority.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	default:
		return "", false
	}
}

// Department is the organizational role of the actor behind a ledger entry.
type Department string

const (
	DepartmentEngineering Department = "Engineering"
	DepartmentPilotage    Department = "Pilotage"
	DepartmentOperations  Department = "Operations"
)

// Departments lists every department.
var Departments = []Department{DepartmentEngineering, DepartmentPilotage, DepartmentOperations}

// ParseDepartment maps a caller-supplied value onto its canonical Department.
// The upper-case spellings used by older clients are accepted.
func ParseDepartment(s string) (Department, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "engineering":
		return DepartmentEngineering, true
	case "pilotage":
		return DepartmentPilotage, true
	case "operations":
		return DepartmentOperations, true
	default:
		return "", false
	}
}

// DateLayout is the wire and storage format of desired and planned dates.
const DateLayout = "2006-01-02"

// Actor identifies who created or last touched an operation. The identity is
// supplied by the caller and never derived server-side.
type Actor struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Operation is a tracked network-configuration change request.
type Operation struct {
	OpID           string    `json:"op_id"`
	Feature        string    `json:"feature"`
	Parameter      string    `json:"parameter"`
	Value          string    `json:"value"`
	Zone           string    `json:"zone"`
	Sites          []string  `json:"sites"`
	DesiredDate    *string   `json:"desired_date"`
	PlannedDate    *string   `json:"planned_date"`
	Priority       Priority  `json:"priority"`
	Status         Status    `json:"status"`
	InitialComment *string   `json:"initial_comment"`
	CreatedBy      Actor     `json:"created_by"`
	UpdatedBy      Actor     `json:"updated_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HistoryEntry is one immutable record in an operation's ledger.
// FromStatus is nil only for the creation entry.
type HistoryEntry struct {
	OpID        string     `json:"op_id"`
	Seq         int        `json:"seq"`
	At          time.Time  `json:"at"`
	Department  Department `json:"department"`
	FromStatus  *Status    `json:"from_status"`
	ToStatus    Status     `json:"to_status"`
	Comment     string     `json:"comment"`
	ActorName   string     `json:"actor_name"`
	PrevHash    string     `json:"prev_hash,omitempty"`
	ContentHash string     `json:"content_hash"`
}

// OperationDetail is an operation together with its full ordered ledger.
type OperationDetail struct {
	Request Operation      `json:"request"`
	History []HistoryEntry `json:"history"`
}

// OperationFilter selects operations for a listing. Zero-valued fields match
// everything; set fields are combined with AND and compared exactly. Query is
// a case-insensitive substring over op_id, feature, parameter, zone and value.
type OperationFilter struct {
	Feature   string
	Parameter string
	Priority  Priority
	Status    Status
	Query     string
}

// Transition is a validated status change handed to the store.
type Transition struct {
	Department  Department
	ToStatus    Status
	Comment     string
	Actor       Actor
	PlannedDate *string
	At          time.Time
}

// Answer is a grounded assistant reply. Every op_id in References exists in
// the store and every fact in Answer comes from one of them.
type Answer struct {
	Answer     string   `json:"answer"`
	References []string `json:"references"`
}
