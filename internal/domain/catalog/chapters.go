package catalog

import (
	"context"

	"github.com/google/uuid"
)

// FirstChapter returns the lowest-ordered chapter, or nil when there are
// none. Ties resolve to the earliest in the slice.
func FirstChapter(chapters []Chapter) *Chapter {
	var first *Chapter
	for i := range chapters {
		if first == nil || chapters[i].Order < first.Order {
			first = &chapters[i]
		}
	}
	return first
}

// AlwaysOpen reports whether c is readable without a purchase: it is marked
// free or it is the first chapter.
func AlwaysOpen(c *Chapter, first *Chapter) bool {
	return c.UnlockType == UnlockFree || (first != nil && first.ID == c.ID)
}

// SellableChapter loads chapterID of game for a chapter-scoped grant. Only
// per-chapter games sell chapters; open reports a chapter that needs no
// purchase.
func SellableChapter(ctx context.Context, repo Repository, game *Game, chapterID uuid.UUID) (chapter *Chapter, open bool, err error) {
	if game.PricingType != PricingPerChapter {
		return nil, false, ErrChaptersNotSold
	}
	chapters, err := repo.ListChapters(ctx, game.ID)
	if err != nil {
		return nil, false, err
	}
	for i := range chapters {
		if chapters[i].ID == chapterID {
			c := chapters[i]
			return &c, AlwaysOpen(&c, FirstChapter(chapters)), nil
		}
	}
	return nil, false, ErrChapterNotFound
}
