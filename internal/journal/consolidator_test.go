package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkstonehq/inkstone/backend/internal/narrative"
	"gorm.io/gorm"
)

type scriptedGenerator struct {
	story      narrative.Story
	err        error
	calls      int
	beforeNext func()
}

func (g *scriptedGenerator) GeneratePage(_ context.Context, _, _ string) (narrative.Story, error) {
	g.calls++
	if g.beforeNext != nil {
		g.beforeNext()
	}
	return g.story, g.err
}

func newTestConsolidator(t *testing.T, db *gorm.DB, generator PageGenerator, retainNotes bool) *Consolidator {
	t.Helper()
	consolidator, err := NewConsolidator(ConsolidatorConfig{
		Journal:           newTestService(t, db, testNow),
		Database:          db,
		Generator:         generator,
		Clock:             fixedClock(testNow),
		IDProvider:        &staticIDGenerator{ids: []string{"page-1", "page-2", "page-3"}},
		RetainSourceNotes: retainNotes,
	})
	if err != nil {
		t.Fatalf("failed to build consolidator: %v", err)
	}
	return consolidator
}

func seedDayNote(t *testing.T, db *gorm.DB, id, userID, content string, at time.Time) {
	t.Helper()
	note := Note{ID: id, UserID: userID, Content: content,
		CreatedAtSeconds: at.Unix(), UpdatedAtSeconds: at.Unix()}
	if err := db.Create(&note).Error; err != nil {
		t.Fatalf("failed to seed note: %v", err)
	}
}

func seedAnswer(t *testing.T, db *gorm.DB, id, userID, question, answer string, at time.Time) {
	t.Helper()
	row := InterviewAnswer{ID: id, UserID: userID, Question: question, Answer: answer,
		Kind: AnswerKindBase, CreatedAtSeconds: at.Unix()}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed answer: %v", err)
	}
}

func TestConsolidateDayRefusesEmptyDay(t *testing.T) {
	db := newTestDB(t)
	generator := &scriptedGenerator{story: narrative.Story{Title: "T", Content: "C"}}
	consolidator := newTestConsolidator(t, db, generator, true)

	_, err := consolidator.ConsolidateDay(context.Background(), mustUserID(t, "user-1"), mustDate(t, "2026-03-14"))
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if generator.calls != 0 {
		t.Fatalf("expected no narrative call on empty day, got %d", generator.calls)
	}
}

func TestConsolidateDayPersistsPageAndPurgesAnswers(t *testing.T) {
	db := newTestDB(t)
	userID := mustUserID(t, "user-1")
	date := mustDate(t, "2026-03-14")
	dayAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	seedDayNote(t, db, "n-1", "user-1", "walked along the river", dayAt)
	seedAnswer(t, db, "a-today", "user-1", "Q1", "A1", dayAt)
	// An answer written days earlier is still consumed by this run.
	seedAnswer(t, db, "a-stale", "user-1", "Q2", "A2", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	seedAnswer(t, db, "a-foreign", "user-2", "Q3", "A3", dayAt)

	generator := &scriptedGenerator{story: narrative.Story{
		Title:   "A Quiet River Day",
		Content: "The morning opened along the river.\n\nIt closed in stillness.",
	}}
	consolidator := newTestConsolidator(t, db, generator, true)

	result, err := consolidator.ConsolidateDay(context.Background(), userID, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CleanupErr != nil {
		t.Fatalf("unexpected cleanup error: %v", result.CleanupErr)
	}
	if result.Page.Title != "A Quiet River Day" {
		t.Fatalf("unexpected title %q", result.Page.Title)
	}
	if want := WordCount(generator.story.Content); result.Page.WordCount != want {
		t.Fatalf("expected word count %d, got %d", want, result.Page.WordCount)
	}

	var remaining []InterviewAnswer
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("failed to list answers: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "a-foreign" {
		t.Fatalf("expected only the foreign answer to survive, got %+v", remaining)
	}

	var notes []Note
	if err := db.Find(&notes).Error; err != nil {
		t.Fatalf("failed to list notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected retained note, got %d rows", len(notes))
	}
}

func TestConsolidateDayOverwritesExistingPage(t *testing.T) {
	db := newTestDB(t)
	userID := mustUserID(t, "user-1")
	date := mustDate(t, "2026-03-14")
	dayAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	generator := &scriptedGenerator{story: narrative.Story{Title: "First Draft", Content: "one two three"}}
	consolidator := newTestConsolidator(t, db, generator, true)

	seedDayNote(t, db, "n-1", "user-1", "first pass", dayAt)
	first, err := consolidator.ConsolidateDay(context.Background(), userID, date)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	seedDayNote(t, db, "n-2", "user-1", "second pass", dayAt)
	generator.story = narrative.Story{Title: "Second Draft", Content: "one two three four five"}
	second, err := consolidator.ConsolidateDay(context.Background(), userID, date)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	var pages []DiaryPage
	if err := db.Where("user_id = ?", "user-1").Find(&pages).Error; err != nil {
		t.Fatalf("failed to list pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected one page per user and date, got %d", len(pages))
	}
	if second.Page.Title != "Second Draft" || second.Page.WordCount != 5 {
		t.Fatalf("expected overwritten page, got %+v", second.Page)
	}
	if second.Page.PageID != first.Page.PageID {
		t.Fatalf("expected page id to survive overwrite, got %q then %q", first.Page.PageID, second.Page.PageID)
	}
}

func TestConsolidateDayRejectsBlankStory(t *testing.T) {
	db := newTestDB(t)
	userID := mustUserID(t, "user-1")
	date := mustDate(t, "2026-03-14")
	dayAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seedDayNote(t, db, "n-1", "user-1", "something happened", dayAt)

	// Pre-existing page from an earlier run must not be touched by a failure.
	existing := DiaryPage{UserID: "user-1", Date: date.String(), PageID: "page-old",
		Title: "Kept", Content: "kept content", WordCount: 2,
		CreatedAtSeconds: testNow.Unix(), UpdatedAtSeconds: testNow.Unix()}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("failed to seed page: %v", err)
	}

	generator := &scriptedGenerator{story: narrative.Story{Title: "   ", Content: "body"}}
	consolidator := newTestConsolidator(t, db, generator, true)

	_, err := consolidator.ConsolidateDay(context.Background(), userID, date)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	var stored DiaryPage
	if err := db.Where("user_id = ? AND date = ?", "user-1", date.String()).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if stored.Title != "Kept" {
		t.Fatalf("expected pre-existing page untouched, got %+v", stored)
	}
}

func TestConsolidateDayWrapsGeneratorFailure(t *testing.T) {
	db := newTestDB(t)
	dayAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seedDayNote(t, db, "n-1", "user-1", "something happened", dayAt)

	generator := &scriptedGenerator{err: errors.New("upstream timeout")}
	consolidator := newTestConsolidator(t, db, generator, true)

	_, err := consolidator.ConsolidateDay(context.Background(), mustUserID(t, "user-1"), mustDate(t, "2026-03-14"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestConsolidateDayDeletesNotesWhenRetentionDisabled(t *testing.T) {
	db := newTestDB(t)
	userID := mustUserID(t, "user-1")
	date := mustDate(t, "2026-03-14")

	seedDayNote(t, db, "n-day", "user-1", "consumed", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	seedDayNote(t, db, "n-other-day", "user-1", "kept", time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC))
	seedDayNote(t, db, "n-foreign", "user-2", "kept", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))

	generator := &scriptedGenerator{story: narrative.Story{Title: "T", Content: "C"}}
	consolidator := newTestConsolidator(t, db, generator, false)

	result, err := consolidator.ConsolidateDay(context.Background(), userID, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CleanupErr != nil {
		t.Fatalf("unexpected cleanup error: %v", result.CleanupErr)
	}

	var notes []Note
	if err := db.Order("note_id ASC").Find(&notes).Error; err != nil {
		t.Fatalf("failed to list notes: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != "n-foreign" || notes[1].ID != "n-other-day" {
		t.Fatalf("expected only out-of-day and foreign notes to survive, got %+v", notes)
	}
}

func TestConsolidateDayReportsCleanupFailureWithPageIntact(t *testing.T) {
	db := newTestDB(t)
	userID := mustUserID(t, "user-1")
	date := mustDate(t, "2026-03-14")
	dayAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	seedDayNote(t, db, "n-1", "user-1", "something happened", dayAt)
	seedAnswer(t, db, "a-1", "user-1", "Q1", "A1", dayAt)

	// Dropping the answers table after generation makes the purge fail while
	// the page write still succeeds.
	generator := &scriptedGenerator{
		story: narrative.Story{Title: "T", Content: "C"},
		beforeNext: func() {
			if err := db.Migrator().DropTable(&InterviewAnswer{}); err != nil {
				t.Fatalf("failed to drop table: %v", err)
			}
		},
	}
	consolidator := newTestConsolidator(t, db, generator, true)

	result, err := consolidator.ConsolidateDay(context.Background(), userID, date)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if !errors.Is(result.CleanupErr, ErrCleanupFailed) {
		t.Fatalf("expected ErrCleanupFailed, got %v", result.CleanupErr)
	}

	var stored DiaryPage
	if err := db.Where("user_id = ? AND date = ?", "user-1", date.String()).Take(&stored).Error; err != nil {
		t.Fatalf("expected persisted page despite cleanup failure: %v", err)
	}
}

func TestDiaryPageRejectsDuplicateUserDateRow(t *testing.T) {
	db := newTestDB(t)

	first := DiaryPage{UserID: "user-1", Date: "2026-03-14", PageID: "p-1",
		Title: "T", Content: "C", WordCount: 1,
		CreatedAtSeconds: testNow.Unix(), UpdatedAtSeconds: testNow.Unix()}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("failed to insert first page: %v", err)
	}

	duplicate := DiaryPage{UserID: "user-1", Date: "2026-03-14", PageID: "p-2",
		Title: "T2", Content: "C2", WordCount: 1,
		CreatedAtSeconds: testNow.Unix(), UpdatedAtSeconds: testNow.Unix()}
	if err := db.Create(&duplicate).Error; err == nil {
		t.Fatalf("expected composite key violation on duplicate insert")
	}
}
