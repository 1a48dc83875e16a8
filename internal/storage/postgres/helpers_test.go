// This file contains test helpers only available during testing.
package postgres

import (
	"context"
	"fmt"
)

// TruncateForTest removes all rows from the blobs table. It lives in the
// postgres package for access to the unexported db field and is exported so
// postgres_test can call it.
func (s *BlobStore) TruncateForTest(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE thinkgraph_blobs"); err != nil {
		return fmt.Errorf("postgres: failed to truncate blobs: %w", err)
	}
	return nil
}
