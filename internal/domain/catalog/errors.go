package catalog

import "github.com/jcq/jcq-api/internal/pkg/apperror"

var (
	ErrGameNotFound    = apperror.New(apperror.KindNotFound, "GAME_NOT_FOUND", "game not found")
	ErrChapterNotFound = apperror.New(apperror.KindNotFound, "CHAPTER_NOT_FOUND", "chapter not found")
	ErrChaptersNotSold = apperror.New(apperror.KindValidation, "CHAPTERS_NOT_SOLD", "chapters of this game are not sold separately")
)
