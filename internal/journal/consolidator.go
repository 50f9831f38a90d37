package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkstonehq/inkstone/backend/internal/narrative"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Consolidation failure taxonomy. Callers distinguish these with errors.Is.
var (
	// ErrNoContent indicates there was nothing collected for the target day.
	ErrNoContent = errors.New("journal: no content to consolidate")
	// ErrGenerationFailed indicates the narrative service failed, returned a
	// malformed object or an empty one.
	ErrGenerationFailed = errors.New("journal: narrative generation failed")
	// ErrPersistenceFailed indicates the diary page upsert failed.
	ErrPersistenceFailed = errors.New("journal: diary page persistence failed")
	// ErrCleanupFailed indicates consumed source rows could not be deleted.
	// The persisted page stands; a later run re-consumes whatever remains.
	ErrCleanupFailed = errors.New("journal: source cleanup failed")
)

const opConsolidate = "journal.consolidate"

// PageGenerator is the narrative-generation collaborator: one blocking
// request, one structured two-field result, no retries.
type PageGenerator interface {
	GeneratePage(ctx context.Context, instruction, dayContext string) (narrative.Story, error)
}

// ConsolidatorConfig bundles the dependencies for the consolidation workflow.
type ConsolidatorConfig struct {
	Journal    *Service
	Database   *gorm.DB
	Generator  PageGenerator
	Clock      DayClock
	IDProvider IDProvider
	// RetainSourceNotes keeps the day's notes after a successful run.
	// Interview answers are always consumed.
	RetainSourceNotes bool
	Logger            *zap.Logger
}

// Consolidator merges a day's notes and the accumulated interview answers
// into a single diary page, persists it idempotently and purges consumed
// source rows. Each invocation is independent; no intermediate state survives
// a failure.
type Consolidator struct {
	journal     *Service
	db          *gorm.DB
	generator   PageGenerator
	clock       DayClock
	idProvider  IDProvider
	retainNotes bool
	logger      *zap.Logger
}

// NewConsolidator validates configuration and constructs the consolidator.
func NewConsolidator(cfg ConsolidatorConfig) (*Consolidator, error) {
	if cfg.Journal == nil {
		return nil, newServiceError(opConsolidate+".new", "missing_journal", errors.New("journal service is required"))
	}
	if cfg.Database == nil {
		return nil, newServiceError(opConsolidate+".new", "missing_database", errMissingDatabase)
	}
	if cfg.Generator == nil {
		return nil, newServiceError(opConsolidate+".new", "missing_generator", errMissingGenerator)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opConsolidate+".new", "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock.now == nil {
		clock = NewDayClock(clock.location, nil)
	}

	return &Consolidator{
		journal:     cfg.Journal,
		db:          cfg.Database,
		generator:   cfg.Generator,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		retainNotes: cfg.RetainSourceNotes,
		logger:      logger,
	}, nil
}

// ConsolidationResult carries the persisted page plus a non-fatal cleanup
// error when consumed rows could not be deleted.
type ConsolidationResult struct {
	Page       DiaryPage
	CleanupErr error
}

// ConsolidateDay runs the full workflow for one owner and date:
// collect → guard → generate → validate → persist → cleanup.
// There is no transaction spanning the generation call and the writes; a
// failure between persist and cleanup leaves answers un-purged, which a
// subsequent run safely re-consumes.
func (c *Consolidator) ConsolidateDay(ctx context.Context, userID UserID, date Date) (ConsolidationResult, error) {
	content, err := c.journal.CollectDay(ctx, userID, date)
	if err != nil {
		return ConsolidationResult{}, err
	}

	if content.Empty() {
		return ConsolidationResult{}, newServiceError(opConsolidate, "no_content",
			fmt.Errorf("%w: user %s date %s", ErrNoContent, userID.String(), date.String()))
	}

	story, err := c.generator.GeneratePage(ctx, consolidationInstruction, buildDayContext(date, content))
	if err != nil {
		c.logError("generation_failed", err, userID, date)
		return ConsolidationResult{}, newServiceError(opConsolidate, "generation_failed",
			fmt.Errorf("%w: %v", ErrGenerationFailed, err))
	}
	if strings.TrimSpace(story.Title) == "" || strings.TrimSpace(story.Content) == "" {
		c.logError("empty_story", nil, userID, date)
		return ConsolidationResult{}, newServiceError(opConsolidate, "generation_failed",
			fmt.Errorf("%w: empty story", ErrGenerationFailed))
	}

	page, err := c.persistPage(ctx, userID, date, story)
	if err != nil {
		c.logError("persist_failed", err, userID, date)
		return ConsolidationResult{}, newServiceError(opConsolidate, "persist_failed",
			fmt.Errorf("%w: %v", ErrPersistenceFailed, err))
	}

	result := ConsolidationResult{Page: page}
	if err := c.purgeConsumed(ctx, userID, date); err != nil {
		c.logError("cleanup_failed", err, userID, date)
		result.CleanupErr = fmt.Errorf("%w: %v", ErrCleanupFailed, err)
	}
	return result, nil
}

func (c *Consolidator) persistPage(ctx context.Context, userID UserID, date Date, story narrative.Story) (DiaryPage, error) {
	pageID, err := c.idProvider.NewID()
	if err != nil {
		return DiaryPage{}, err
	}

	now := c.clock.Now().Unix()
	page := DiaryPage{
		UserID:           userID.String(),
		Date:             date.String(),
		PageID:           pageID,
		Title:            strings.TrimSpace(story.Title),
		Content:          story.Content,
		WordCount:        WordCount(story.Content),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	err = c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "content", "word_count", "updated_at_s",
			}),
		}).
		Create(&page).Error
	if err != nil {
		return DiaryPage{}, err
	}

	// Re-read so the response reflects the stored row (page_id and created_at
	// survive from the first write on overwrite).
	var stored DiaryPage
	if err := c.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID.String(), date.String()).
		Take(&stored).Error; err != nil {
		return DiaryPage{}, err
	}
	return stored, nil
}

func (c *Consolidator) purgeConsumed(ctx context.Context, userID UserID, date Date) error {
	// Answers are consumed unconditionally, whatever day they were written.
	if err := c.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Delete(&InterviewAnswer{}).Error; err != nil {
		return err
	}

	if c.retainNotes {
		return nil
	}

	start, next, err := c.clock.Bounds(date)
	if err != nil {
		return err
	}
	return c.db.WithContext(ctx).
		Where("user_id = ? AND created_at_s >= ? AND created_at_s < ?",
			userID.String(), start.Unix(), next.Unix()).
		Delete(&Note{}).Error
}

func (c *Consolidator) logError(reason string, err error, userID UserID, date Date) {
	attrs := []zap.Field{
		zap.String("operation", opConsolidate),
		zap.String("reason", reason),
		zap.String("user_id", userID.String()),
		zap.String("date", date.String()),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	c.logger.Error("consolidation error", attrs...)
}
