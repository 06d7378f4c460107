package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is the server-assigned task identifier. It is opaque to the client: the
// backend sends numbers today, but strings decode too.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) MarshalJSON() ([]byte, error) {
	// Only canonical integers go out bare; "007" or "+5" stay strings.
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusOverdue    Status = "OVERDUE" // persisted by the backend when a due date passes
)

// Statuses are the values a user can pick.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// ParseStatus accepts the wire form case-insensitively, with '-' or ' ' for '_'.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s)))
	switch st := Status(norm); st {
	case StatusTodo, StatusInProgress, StatusDone, StatusOverdue:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("due date must be YYYY-MM-DD: %w", err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// BeforeDay reports whether d is an earlier calendar day than the date of t in t's location.
func (d Date) BeforeDay(t time.Time) bool {
	y, m, day := t.Date()
	return d.Time.Before(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task is one entry in the task collection.
type Task struct {
	ID             ID         `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	DueDate        *Date      `json:"due_date,omitempty"`
	AssignedUserID *int64     `json:"assigned_user,omitempty"` // Only set by superusers
	User           string     `json:"user,omitempty"`          // Owner username, read-only
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// IsOverdue reports whether the due date is before today and the task is not done.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != StatusDone && t.DueDate.BeforeDay(now)
}

// Draft is the writable part of a task, sent on create and on update.
type Draft struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Status         Status `json:"status"`
	DueDate        *Date  `json:"due_date"`
	AssignedUserID *int64 `json:"assigned_user,omitempty"`
}

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrAssigneeRequired = errors.New("an assignee is required")
)

// Validate applies the form rules: a title, a known status, and an assignee when
// the author has elevated privilege. The backend remains the authority.
func (d Draft) Validate(elevated bool) error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if d.Status != "" {
		if _, err := ParseStatus(string(d.Status)); err != nil {
			return err
		}
	}
	if elevated && d.AssignedUserID == nil {
		return ErrAssigneeRequired
	}
	return nil
}

// DraftOf copies the writable fields of t, the starting point of an edit.
func DraftOf(t Task) Draft {
	return Draft{
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		DueDate:        t.DueDate,
		AssignedUserID: t.AssignedUserID,
	}
}
