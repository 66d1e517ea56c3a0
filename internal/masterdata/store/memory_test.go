package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"masterdata/internal/masterdata/store"
)

type InMemoryStoreSuite struct {
	contractSuite
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) TestReturnedRowsAreCopies() {
	entityID := s.newEntity()
	s.write(entityID, legalName, "Acme", "USER_INPUT", nil)

	row, err := s.store.FindRow(s.T().Context(), entityID, "identity", nil)
	s.Require().NoError(err)
	row.Values["legal_name"] = "mutated"

	again, err := s.store.FindRow(s.T().Context(), entityID, "identity", nil)
	s.Require().NoError(err)
	v, _ := again.Value("legal_name")
	s.Equal("Acme", v)
}
