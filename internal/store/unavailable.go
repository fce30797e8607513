package store

import "context"

var _ Store = (*UnavailableStore)(nil)

// UnavailableStore fails every call with the error that made the real backend unusable.
type UnavailableStore struct {
	err error
}

func NewUnavailableStore(err error) *UnavailableStore {
	return &UnavailableStore{err: err}
}

func (s *UnavailableStore) Get(ctx context.Context, key string) (string, error) {
	return "", s.err
}

func (s *UnavailableStore) Set(ctx context.Context, key string, value string) error {
	return s.err
}

func (s *UnavailableStore) Close() error {
	return nil
}
