package flashcards

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/flashdeck/internal/sm2"
	"github.com/conorfennell/flashdeck/internal/storage"
)

// Use errors.Is to classify: errors.Is(err, flashcards.ErrNotFound).
var (
	ErrInvalidArgument = errors.New("flashcards: invalid argument")
	ErrNotFound        = errors.New("flashcards: not found")
	ErrConflict        = errors.New("flashcards: concurrent review")
)

// classify maps lower-level errors onto the service's error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, sm2.ErrInvalidRating):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}

// invalid turns validator output into a single ErrInvalidArgument.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s", ErrInvalidArgument, describe(fe))
	}
	return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s cannot be more than %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
