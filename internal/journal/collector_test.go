package journal

import (
	"context"
	"testing"
	"time"
)

func TestCollectDayGathersNotesAndAllAnswers(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db, testNow)
	userID := mustUserID(t, "user-1")
	date := mustDate(t, "2026-03-14")

	notes := []Note{
		{ID: "n-1", UserID: "user-1", Content: "today's note",
			CreatedAtSeconds: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC).Unix()},
		{ID: "n-2", UserID: "user-1", Content: "yesterday's note",
			CreatedAtSeconds: time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC).Unix()},
	}
	for _, note := range notes {
		note.UpdatedAtSeconds = note.CreatedAtSeconds
		if err := db.Create(&note).Error; err != nil {
			t.Fatalf("failed to seed note: %v", err)
		}
	}
	answers := []InterviewAnswer{
		{ID: "a-1", UserID: "user-1", Question: "Q1", Answer: "A1", Kind: AnswerKindBase,
			CreatedAtSeconds: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).Unix()},
		{ID: "a-2", UserID: "user-1", Question: "Q2", Answer: "A2", Kind: AnswerKindAI,
			CreatedAtSeconds: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC).Unix()},
	}
	for _, answer := range answers {
		if err := db.Create(&answer).Error; err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	content, err := service.CollectDay(context.Background(), userID, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(content.Notes) != 1 || content.Notes[0].ID != "n-1" {
		t.Fatalf("expected only the day's note, got %+v", content.Notes)
	}
	if len(content.Answers) != 2 {
		t.Fatalf("expected every accumulated answer, got %d", len(content.Answers))
	}
	if content.Empty() {
		t.Fatalf("expected non-empty content")
	}
}

func TestCollectDayEmptyForUntouchedDay(t *testing.T) {
	service := newTestService(t, newTestDB(t), testNow)

	content, err := service.CollectDay(context.Background(), mustUserID(t, "user-1"), mustDate(t, "2026-03-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !content.Empty() {
		t.Fatalf("expected empty content, got %+v", content)
	}
}
