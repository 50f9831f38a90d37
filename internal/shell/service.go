package shell

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/inkstonehq/inkstone/backend/internal/journal"
	"github.com/inkstonehq/inkstone/backend/internal/narrative"
	"github.com/inkstonehq/inkstone/backend/internal/profiles"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentNotesLimit = 15

var (
	// ErrExtractionDisabled indicates the user has turned the AI extraction
	// toggle off in their profile.
	ErrExtractionDisabled = errors.New("shell: ai extraction disabled")
	// ErrNoNotes indicates there are no notes to analyze.
	ErrNoNotes = errors.New("shell: no notes to analyze")
	// ErrInvalidCategory indicates a blank category name.
	ErrInvalidCategory = errors.New("shell: invalid category name")
)

// Extractor pulls categorized entities out of raw notes text.
type Extractor interface {
	ExtractItems(ctx context.Context, notesText string) ([]narrative.ExtractedItem, error)
}

// SettingsReader exposes the profile toggle gating extraction.
type SettingsReader interface {
	Get(ctx context.Context, userID string) (profiles.Profile, error)
}

// ServiceConfig bundles the dependencies for the shell service.
type ServiceConfig struct {
	Database   *gorm.DB
	Extractor  Extractor
	Settings   SettingsReader
	IDProvider journal.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages shell items and categories and the extraction flow that
// feeds them from recent notes.
type Service struct {
	db         *gorm.DB
	extractor  Extractor
	settings   SettingsReader
	idProvider journal.IDProvider
	now        func() time.Time
	logger     *zap.Logger
}

// NewService validates configuration and constructs the shell service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("shell: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("shell: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		extractor:  cfg.Extractor,
		settings:   cfg.Settings,
		idProvider: cfg.IDProvider,
		now:        clock,
		logger:     logger,
	}, nil
}

// Overview is the shell screen payload: the user's items plus the built-in
// categories merged with their own.
type Overview struct {
	Items      []Item
	Categories []Category
}

// Overview returns the user's items and categories.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	var items []Item
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC").
		Find(&items).Error; err != nil {
		return Overview{}, err
	}

	var custom []Category
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s ASC").
		Find(&custom).Error; err != nil {
		return Overview{}, err
	}

	categories := make([]Category, 0, len(BuiltinCategories)+len(custom))
	categories = append(categories, BuiltinCategories...)
	categories = append(categories, custom...)

	return Overview{Items: items, Categories: categories}, nil
}

// CreateCategory adds a user-defined category.
func (s *Service) CreateCategory(ctx context.Context, userID, name, description, iconName string) (Category, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Category{}, ErrInvalidCategory
	}

	categoryID, err := s.idProvider.NewID()
	if err != nil {
		return Category{}, err
	}

	if strings.TrimSpace(iconName) == "" {
		iconName = "Box"
	}
	category := Category{
		ID:               categoryID,
		UserID:           userID,
		Name:             trimmedName,
		Description:      strings.TrimSpace(description),
		IconName:         iconName,
		CreatedAtSeconds: s.now().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return Category{}, err
	}
	return category, nil
}

// ExtractFromNotes analyzes the user's most recent notes and stores the
// entities the narrative service finds. Refuses when the profile toggle is
// off. Returns the number of items stored.
func (s *Service) ExtractFromNotes(ctx context.Context, userID string) (int, error) {
	if s.extractor == nil {
		return 0, errors.New("shell: extractor is required")
	}
	if s.settings != nil {
		profile, err := s.settings.Get(ctx, userID)
		if err != nil {
			return 0, err
		}
		if !profile.AIExtractionEnabled {
			return 0, ErrExtractionDisabled
		}
	}

	var notes []journal.Note
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC").
		Limit(recentNotesLimit).
		Find(&notes).Error; err != nil {
		return 0, err
	}
	if len(notes) == 0 {
		return 0, ErrNoNotes
	}

	parts := make([]string, 0, len(notes))
	for _, note := range notes {
		parts = append(parts, note.Content)
	}

	extracted, err := s.extractor.ExtractItems(ctx, strings.Join(parts, "\n---\n"))
	if err != nil {
		s.logger.Error("shell extraction failed", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	if len(extracted) == 0 {
		return 0, nil
	}

	now := s.now().Unix()
	rows := make([]Item, 0, len(extracted))
	for _, item := range extracted {
		itemID, err := s.idProvider.NewID()
		if err != nil {
			return 0, err
		}
		rows = append(rows, Item{
			ID:               itemID,
			UserID:           userID,
			Category:         item.Category,
			Title:            item.Title,
			Description:      item.Description,
			CreatedAtSeconds: now,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}
