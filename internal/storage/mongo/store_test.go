package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/limpopoconnect/classifieds-api/internal/storage"
	"github.com/limpopoconnect/classifieds-api/internal/storage/storagetest"
)

// TestStoreContract gives every subtest its own database and drops it afterwards.
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URL")
	if uri == "" {
		t.Skip("set TEST_MONGODB_URL to run the MongoDB store tests")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		t.Helper()
		name := fmt.Sprintf("classifieds_test_%d", time.Now().UnixNano())
		store, err := Open(context.Background(), uri, name)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = store.db.Drop(context.Background())
			_ = store.Close()
		})
		return store
	})
}
