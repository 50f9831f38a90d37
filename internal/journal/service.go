package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingGenerator  = errors.New("narrative generator is required")
	errNoteNotFound      = errors.New("note not found")
	noOpLogger           = zap.NewNop()
)

// ServiceError wraps a failure with a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code exposes the dotted operation.reason code for transport error mapping.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "journal.service.new"
	opCreateNote    = "journal.create_note"
	opUpdateNote    = "journal.update_note"
	opDeleteNote    = "journal.delete_note"
	opListNotes     = "journal.list_notes"
	opSubmitAnswers = "journal.submit_answers"
	opListAnswers   = "journal.list_answers"
	opListPages     = "journal.list_pages"
	opGetPage       = "journal.get_page"
	opDayQuestions  = "journal.day_questions"
	opCollectDay    = "journal.collect_day"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// QuestionGenerator produces personalized interview questions from a notes context.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, notesContext string) ([]string, error)
}

// ServiceConfig bundles the dependencies for the journal service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      DayClock
	IDProvider IDProvider
	Questions  QuestionGenerator
	Logger     *zap.Logger
}

// Service owns notes, interview answers and diary page reads for the journal.
type Service struct {
	db         *gorm.DB
	clock      DayClock
	idProvider IDProvider
	questions  QuestionGenerator
	logger     *zap.Logger
}

// BaseQuestions is the fixed reflection block offered to every user.
var BaseQuestions = []string{
	"What was the highlight of your day?",
	"What challenged you today?",
	"What are you grateful for right now?",
}

// NewService validates configuration and constructs the journal service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock.now == nil {
		clock = NewDayClock(clock.location, nil)
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		questions:  cfg.Questions,
		logger:     logger,
	}, nil
}

// CreateNote persists a new note stamped with the clock's current instant.
func (s *Service) CreateNote(ctx context.Context, userID UserID, content string) (Note, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Note{}, newServiceError(opCreateNote, "empty_content", ErrEmptyContent)
	}

	noteID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateNote, "id_generation_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opCreateNote, "id_generation_failed", err)
	}

	now := s.clock.Now().Unix()
	note := Note{
		ID:               noteID,
		UserID:           userID.String(),
		Content:          trimmed,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		s.logError(opCreateNote, "insert_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opCreateNote, "insert_failed", err)
	}
	return note, nil
}

// UpdateNote replaces the content of a note owned by the caller.
func (s *Service) UpdateNote(ctx context.Context, userID UserID, noteID string, content string) (Note, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Note{}, newServiceError(opUpdateNote, "empty_content", ErrEmptyContent)
	}
	if strings.TrimSpace(noteID) == "" {
		return Note{}, newServiceError(opUpdateNote, "invalid_note_id", ErrInvalidNoteID)
	}

	var note Note
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID.String(), noteID).
		Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, newServiceError(opUpdateNote, "not_found", errNoteNotFound)
	}
	if err != nil {
		s.logError(opUpdateNote, "select_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opUpdateNote, "select_failed", err)
	}

	note.Content = trimmed
	note.UpdatedAtSeconds = s.clock.Now().Unix()
	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		s.logError(opUpdateNote, "save_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opUpdateNote, "save_failed", err)
	}
	return note, nil
}

// DeleteNote removes a note owned by the caller.
func (s *Service) DeleteNote(ctx context.Context, userID UserID, noteID string) error {
	if strings.TrimSpace(noteID) == "" {
		return newServiceError(opDeleteNote, "invalid_note_id", ErrInvalidNoteID)
	}
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID.String(), noteID).
		Delete(&Note{})
	if result.Error != nil {
		s.logError(opDeleteNote, "delete_failed", result.Error, zap.String("user_id", userID.String()))
		return newServiceError(opDeleteNote, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteNote, "not_found", errNoteNotFound)
	}
	return nil
}

// ListNotesForDay returns the caller's notes created within the date's bounds,
// oldest first.
func (s *Service) ListNotesForDay(ctx context.Context, userID UserID, date Date) ([]Note, error) {
	start, next, err := s.clock.Bounds(date)
	if err != nil {
		return nil, newServiceError(opListNotes, "invalid_date", err)
	}

	var notes []Note
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at_s >= ? AND created_at_s < ?",
			userID.String(), start.Unix(), next.Unix()).
		Order("created_at_s ASC").
		Find(&notes).Error; err != nil {
		s.logError(opListNotes, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListNotes, "query_failed", err)
	}
	return notes, nil
}

// AnswerInput carries one answered question from the interview flow.
type AnswerInput struct {
	Question string
	Answer   string
	Kind     AnswerKind
}

// SubmitAnswers bulk-inserts answered interview questions. Blank answers are
// skipped; the returned count reflects rows actually written.
func (s *Service) SubmitAnswers(ctx context.Context, userID UserID, answers []AnswerInput) (int, error) {
	rows := make([]InterviewAnswer, 0, len(answers))
	now := s.clock.Now().Unix()
	for _, input := range answers {
		if strings.TrimSpace(input.Answer) == "" {
			continue
		}
		if input.Kind != AnswerKindBase && input.Kind != AnswerKindAI {
			return 0, newServiceError(opSubmitAnswers, "invalid_kind", ErrInvalidAnswerKind)
		}
		answerID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSubmitAnswers, "id_generation_failed", err, zap.String("user_id", userID.String()))
			return 0, newServiceError(opSubmitAnswers, "id_generation_failed", err)
		}
		rows = append(rows, InterviewAnswer{
			ID:               answerID,
			UserID:           userID.String(),
			Question:         strings.TrimSpace(input.Question),
			Answer:           strings.TrimSpace(input.Answer),
			Kind:             input.Kind,
			CreatedAtSeconds: now,
		})
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		s.logError(opSubmitAnswers, "insert_failed", err, zap.String("user_id", userID.String()))
		return 0, newServiceError(opSubmitAnswers, "insert_failed", err)
	}
	return len(rows), nil
}

// ListAnswers returns every unconsolidated interview answer for the caller,
// oldest first.
func (s *Service) ListAnswers(ctx context.Context, userID UserID) ([]InterviewAnswer, error) {
	var answers []InterviewAnswer
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at_s ASC").
		Find(&answers).Error; err != nil {
		s.logError(opListAnswers, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListAnswers, "query_failed", err)
	}
	return answers, nil
}

// ListPages returns the caller's diary pages, most recent date first.
func (s *Service) ListPages(ctx context.Context, userID UserID) ([]DiaryPage, error) {
	var pages []DiaryPage
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("date DESC").
		Find(&pages).Error; err != nil {
		s.logError(opListPages, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListPages, "query_failed", err)
	}
	return pages, nil
}

// GetPage returns the caller's diary page for the date, if one exists.
func (s *Service) GetPage(ctx context.Context, userID UserID, date Date) (DiaryPage, error) {
	var page DiaryPage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID.String(), date.String()).
		Take(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DiaryPage{}, newServiceError(opGetPage, "not_found", gorm.ErrRecordNotFound)
	}
	if err != nil {
		s.logError(opGetPage, "query_failed", err, zap.String("user_id", userID.String()))
		return DiaryPage{}, newServiceError(opGetPage, "query_failed", err)
	}
	return page, nil
}

// QuestionsForDay asks the narrative service for personalized interview
// questions grounded in the day's notes.
func (s *Service) QuestionsForDay(ctx context.Context, userID UserID, date Date) ([]string, error) {
	if s.questions == nil {
		return nil, newServiceError(opDayQuestions, "missing_generator", errMissingGenerator)
	}

	notes, err := s.ListNotesForDay(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.GenerateQuestions(ctx, notesContext(notes))
	if err != nil {
		s.logError(opDayQuestions, "generation_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opDayQuestions, "generation_failed", err)
	}
	return questions, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("journal service error", attrs...)
}
