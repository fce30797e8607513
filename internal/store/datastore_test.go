package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs only against the emulator:
//
//	gcloud beta emulators datastore start
//	$(gcloud beta emulators datastore env-init)
func TestDatastoreStore(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST is not set")
	}

	pjID := os.Getenv("PROJECT_ID")
	if pjID == "" {
		pjID = "tally-counter-test"
	}

	s, err := OpenDatastoreStore(context.Background(), pjID, "test-"+uuid.New().String(), "")
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}
