package models

import (
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryUrgent   Category = "Urgent"
	CategoryShopping Category = "Shopping"
	CategoryHealth   Category = "Health"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryUrgent, CategoryShopping, CategoryHealth:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

const (
	dueDateLayout = "2006-01-02"
	dueTimeLayout = "15:04"
)

// Task is the central entity. IDs are generated client-side and immutable.
// OwnerID is empty for guest/local tasks and carries the authenticated
// identity's id otherwise. CreatedAt is unix milliseconds and is the default
// ordering key (descending).
type Task struct {
	ID          string   `json:"id" gorm:"primaryKey"`
	OwnerID     string   `json:"owner_id,omitempty" gorm:"index"`
	Title       string   `json:"title" gorm:"not null"`
	Description string   `json:"description"`
	Category    Category `json:"category" gorm:"not null;default:'Personal'"`
	Priority    Priority `json:"priority" gorm:"not null;default:'medium'"`
	Completed   bool     `json:"completed" gorm:"not null;default:false"`
	DueDate     string   `json:"due_date,omitempty"`
	DueTime     string   `json:"due_time,omitempty"`
	CreatedAt   int64    `json:"created_at" gorm:"not null"`
}

// TaskInput carries the user-editable fields of a task.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	DueDate     string   `json:"due_date"`
	DueTime     string   `json:"due_time"`
}

// NewTask builds a persisted task from user input, assigning id and
// created-at. ownerID may be empty (guest mode).
func NewTask(in TaskInput, ownerID string) Task {
	category := in.Category
	if !category.Valid() {
		category = CategoryPersonal
	}
	priority := in.Priority
	if !priority.Valid() {
		priority = PriorityMedium
	}
	return Task{
		ID:          uuid.Must(uuid.NewV4()).String(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    category,
		Priority:    priority,
		DueDate:     in.DueDate,
		DueTime:     in.DueTime,
		CreatedAt:   time.Now().UnixMilli(),
	}
}

// Deadline combines due date and due time into an instant. A task without
// both parts has no deadline; due time alone is ignored.
func (t Task) Deadline() (time.Time, bool) {
	if t.DueDate == "" || t.DueTime == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(dueDateLayout+" "+dueTimeLayout, t.DueDate+" "+t.DueTime, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// SortByCreatedDesc orders tasks newest-first, the display and storage order.
func SortByCreatedDesc(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt > tasks[j].CreatedAt
	})
}
