package journal

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DayContent is the raw material collected for one consolidation run: the
// day's notes plus every interview answer accumulated so far.
type DayContent struct {
	Notes   []Note
	Answers []InterviewAnswer
}

// Empty reports whether there is nothing to consolidate.
func (c DayContent) Empty() bool {
	return len(c.Notes) == 0 && len(c.Answers) == 0
}

// CollectDay gathers the caller's notes within the date's bounds and all of
// their interview answers regardless of date. The two reads have no ordering
// dependency and run concurrently; either failing aborts the collection.
func (s *Service) CollectDay(ctx context.Context, userID UserID, date Date) (DayContent, error) {
	var content DayContent

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		notes, err := s.ListNotesForDay(groupCtx, userID, date)
		if err != nil {
			return err
		}
		content.Notes = notes
		return nil
	})
	group.Go(func() error {
		answers, err := s.ListAnswers(groupCtx, userID)
		if err != nil {
			return err
		}
		content.Answers = answers
		return nil
	})

	if err := group.Wait(); err != nil {
		return DayContent{}, newServiceError(opCollectDay, "read_failed", err)
	}
	return content, nil
}
