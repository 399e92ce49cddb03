package registry

import "fmt"

// RepositoryNotFoundError reports a toggle against a repository the
// registry has never seen
type RepositoryNotFoundError struct {
	Owner string
	Name  string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %s/%s is not registered", e.Owner, e.Name)
}

// NegativePaginationError reports list options that can never be satisfied
type NegativePaginationError struct {
	Limit  int
	Offset int
}

func (e *NegativePaginationError) Error() string {
	return fmt.Sprintf("pagination values must not be negative (limit=%d, offset=%d)", e.Limit, e.Offset)
}

// SyncError wraps any failure of a registry synchronisation run with the
// estate it was running for
type SyncError struct {
	EstateKey string
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("registry sync for estate %s failed: %v", e.EstateKey, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
