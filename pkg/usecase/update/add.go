package update

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidInput = goerr.New("invalid update input")

// ValidationError lists field problems of an AddInput. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

var validate = validator.New()

// AddInput is what an admin submits
type AddInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
}

// AddResult tells whether the spreadsheet copy was written. A sync failure
// never fails the insert.
type AddResult struct {
	Update      *model.Update
	SheetSynced bool
	SheetError  error
}

// Add stores a new update stamped with the date and time of now
func (u *UseCase) Add(ctx context.Context, input AddInput, now time.Time) (*AddResult, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	if err := validate.Struct(input); err != nil {
		return nil, newValidationError(err)
	}

	update := &model.Update{
		ID:          model.NewUpdateID(),
		Date:        now.Format(model.DateLayout),
		Time:        now.Format(model.TimeLayout),
		Title:       input.Title,
		Description: input.Description,
		CreatedAt:   now,
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	if err := u.repo.PutUpdate(ctx, update); err != nil {
		return nil, goerr.Wrap(err, "failed to save update")
	}

	result := &AddResult{Update: update}
	if u.sheets == nil {
		return result, nil
	}

	if err := u.sheets.AppendUpdate(ctx, update); err != nil {
		logging.From(ctx).Warn("failed to sync update to sheet", "error", err, "id", update.ID)
		result.SheetError = err
		return result, nil
	}
	result.SheetSynced = true
	return result, nil
}

func newValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return goerr.Wrap(err, "failed to validate update input")
	}

	ve := &ValidationError{}
	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			ve.Problems = append(ve.Problems, field+" is required")
		case "max":
			ve.Problems = append(ve.Problems, field+" must be at most "+e.Param()+" characters")
		default:
			ve.Problems = append(ve.Problems, field+" is invalid")
		}
	}
	return ve
}
