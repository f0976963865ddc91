//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "veritas/pkg/domain"
	audit "veritas/pkg/platform/audit"
	"veritas/pkg/platform/audit/store/postgres"
	"veritas/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	base := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category: audit.CategoryOperations, Timestamp: base, UserID: userID,
		Subject: "scan-1", Action: string(audit.EventScanDeleted), RequestID: "req-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category: audit.CategoryAdmin, Timestamp: base.Add(time.Second),
		Subject: "account-1", Action: string(audit.EventAccountDeleted),
	}))

	mine, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("scan-1", mine[0].Subject)
	s.Equal("req-1", mine[0].RequestID)

	recent, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(string(audit.EventAccountDeleted), recent[0].Action)
	s.True(recent[0].UserID.IsNil())
}
