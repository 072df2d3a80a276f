package processor

import (
	"fmt"

	"nfseBack/internal/models"
)

// NotFoundError reports a record the pipeline depends on that does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e.Entity == "certificate" {
		return fmt.Sprintf("certificate for user ID %s not found", e.Key)
	}
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return models.ErrNoRecord }
