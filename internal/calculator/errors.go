package calculator

import (
	"errors"

	"github.com/majnioui/calc/internal/models"
)

var (
	// ErrInvalidInput is returned for out-of-domain loan or coordinate arguments.
	ErrInvalidInput = models.ErrInvalidInput
	// ErrEmptyCandidateSet is returned when nearest selection gets no candidates.
	ErrEmptyCandidateSet = errors.New("empty candidate set")
)
