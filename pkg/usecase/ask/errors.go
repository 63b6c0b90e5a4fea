package ask

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrQuestionRequired is returned for an empty or blank question
	ErrQuestionRequired = goerr.New("question is required")

	// ErrNotConfigured means the store or the generator is missing
	ErrNotConfigured = goerr.New("server configuration is incomplete")

	// ErrRetrieval is returned when the store failed and the recovery fetch
	// failed as well
	ErrRetrieval = goerr.New("failed to fetch updates")

	// ErrEmptyGeneration is returned when the model produced no usable text
	ErrEmptyGeneration = goerr.New("generator returned empty text")
)
