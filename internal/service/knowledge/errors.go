package knowledge

import (
	"errors"
	"fmt"
)

// ErrAdminRequired is returned when a non-admin asks for system statistics.
var ErrAdminRequired = errors.New("admin role required")

// FetchError reports a failed refresh. The previous collection is kept.
type FetchError struct {
	Resource Resource
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("refresh %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
