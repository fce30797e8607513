package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/datastore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

var _ Store = (*DatastoreStore)(nil)

const DefaultKind = "TallySlot"

type slot struct {
	Value     string `datastore:",noindex"`
	UpdatedAt time.Time
}

type DatastoreStore struct {
	client    *datastore.Client
	namespace string
	kind      string
}

// OpenDatastoreStore connects with application default credentials,
// or to the emulator when DATASTORE_EMULATOR_HOST is set.
func OpenDatastoreStore(ctx context.Context, projectID, namespace, kind string) (*DatastoreStore, error) {
	var opts []option.ClientOption
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		ts, err := google.DefaultTokenSource(ctx, datastore.ScopeDatastore)
		if err != nil {
			return nil, fmt.Errorf("google.DefaultTokenSource: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	cl, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("datastore.NewClient: %w", err)
	}
	return NewDatastoreStore(cl, namespace, kind), nil
}

func NewDatastoreStore(client *datastore.Client, namespace, kind string) *DatastoreStore {
	if kind == "" {
		kind = DefaultKind
	}
	return &DatastoreStore{client: client, namespace: namespace, kind: kind}
}

func (s *DatastoreStore) key(name string) *datastore.Key {
	key := datastore.NameKey(s.kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *DatastoreStore) Get(ctx context.Context, key string) (string, error) {
	var rec slot
	if err := s.client.Get(ctx, s.key(key), &rec); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("cl.Get: %w", err)
	}
	return rec.Value, nil
}

func (s *DatastoreStore) Set(ctx context.Context, key string, value string) error {
	rec := slot{
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := s.client.Put(ctx, s.key(key), &rec); err != nil {
		return fmt.Errorf("cl.Put: %w", err)
	}
	return nil
}

func (s *DatastoreStore) Close() error {
	return s.client.Close()
}
