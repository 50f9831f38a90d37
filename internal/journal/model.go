package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnswerKind distinguishes the fixed reflection block from AI-personalized questions.
type AnswerKind string

const (
	// AnswerKindBase marks answers to the fixed base reflection questions.
	AnswerKindBase AnswerKind = "base"
	// AnswerKindAI marks answers to AI-generated personalized questions.
	AnswerKindAI AnswerKind = "ai"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("journal: invalid user id")
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("journal: invalid note id")
	// ErrInvalidDate indicates that a calendar date string is not of the form YYYY-MM-DD.
	ErrInvalidDate = errors.New("journal: invalid date")
	// ErrInvalidAnswerKind indicates an answer kind outside base|ai.
	ErrInvalidAnswerKind = errors.New("journal: invalid answer kind")
	// ErrEmptyContent indicates note content that is blank after trimming.
	ErrEmptyContent = errors.New("journal: empty content")
)

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Date represents a validated calendar date of the form YYYY-MM-DD.
type Date string

const dateLayout = "2006-01-02"

// NewDate validates raw input and returns a Date.
func NewDate(rawInput string) (Date, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
	}
	return Date(parsed.Format(dateLayout)), nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return string(d)
}

// ParseAnswerKind validates raw input against the supported kinds.
func ParseAnswerKind(rawInput string) (AnswerKind, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case string(AnswerKindBase):
		return AnswerKindBase, nil
	case string(AnswerKindAI):
		return AnswerKindAI, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAnswerKind, rawInput)
	}
}

// Note models a single timestamped free-text entry.
type Note struct {
	ID               string `gorm:"column:note_id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_notes_user_created,priority:1"`
	Content          string `gorm:"column:content;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_notes_user_created,priority:2"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// InterviewAnswer models one answered interview question awaiting consolidation.
type InterviewAnswer struct {
	ID               string     `gorm:"column:answer_id;primaryKey;size:190;not null"`
	UserID           string     `gorm:"column:user_id;size:190;not null;index:idx_answers_user"`
	Question         string     `gorm:"column:question;type:text;not null"`
	Answer           string     `gorm:"column:answer;type:text;not null"`
	Kind             AnswerKind `gorm:"column:kind;size:8;not null"`
	CreatedAtSeconds int64      `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (InterviewAnswer) TableName() string {
	return "interview_answers"
}

// DiaryPage models the single consolidated narrative for one user on one calendar date.
// The composite primary key enforces at most one page per (user, date).
type DiaryPage struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Date             string `gorm:"column:date;primaryKey;size:10;not null"`
	PageID           string `gorm:"column:page_id;size:190;not null"`
	Title            string `gorm:"column:title;type:text;not null"`
	Content          string `gorm:"column:content;type:text;not null"`
	WordCount        int    `gorm:"column:word_count;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DiaryPage) TableName() string {
	return "diary_pages"
}

// WordCount reports the number of whitespace-delimited tokens in content.
// Stored word counts are always recomputed from content, never trusted from input.
func WordCount(content string) int {
	return len(strings.Fields(content))
}
