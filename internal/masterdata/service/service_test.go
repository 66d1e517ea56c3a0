package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/resolver"
	"masterdata/internal/masterdata/service"
	"masterdata/internal/masterdata/store"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/requestcontext"
)

const (
	fieldLEI       models.FieldNo = 2
	fieldLegalName models.FieldNo = 3
	fieldTrader    models.FieldNo = 30
	fieldAuthority models.FieldNo = 32
)

type ServiceSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	resolver *resolver.Resolver
	svc      *service.Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.resolver = resolver.New(s.store)
	s.svc = service.New(s.store, store.NewShardedTx(time.Second), s.resolver)
	s.ctx = requestcontext.WithActorID(context.Background(), "operator-7")
}

func (s *ServiceSuite) freshHandle() models.EntityRef {
	return models.ForHandle(id.HandleID(id.NewEntityID()))
}

func (s *ServiceSuite) entityOf(ref models.EntityRef) id.EntityID {
	if ref.Kind == models.RefEntity {
		return id.EntityID(ref.ID)
	}
	entityID, found, err := s.resolver.Lookup(s.ctx, id.HandleID(ref.ID))
	s.Require().NoError(err)
	s.Require().True(found, "handle should be materialized")
	return entityID
}

func (s *ServiceSuite) update(ref models.EntityRef, field models.FieldNo, value string, source models.Source) bool {
	ok, err := s.svc.UpdateField(s.ctx, ref, field, value, models.ProvenanceInput{Source: source, EvidenceID: "ev"}, nil)
	s.Require().NoError(err)
	return ok
}

func (s *ServiceSuite) history(ref models.EntityRef, field models.FieldNo) []models.AuditEvent {
	events, err := s.svc.History(s.ctx, s.entityOf(ref), field)
	s.Require().NoError(err)
	return events
}

func (s *ServiceSuite) field(ref models.EntityRef, field models.FieldNo) service.FieldValue {
	fv, err := s.svc.GetField(s.ctx, s.entityOf(ref), field, nil)
	s.Require().NoError(err)
	return fv
}

// -----------------------------------------------------------------------------
// Scenarios
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestScenarioHumanFirstWriteThenRegistryDenied() {
	ref := s.freshHandle()

	s.Run("first human write is accepted", func() {
		s.True(s.update(ref, fieldLegalName, "Acme Corp", models.SourceUserInput))
		fv := s.field(ref, fieldLegalName)
		s.True(fv.Present)
		s.Equal("Acme Corp", fv.Value)
		s.Require().NotNil(fv.Provenance)
		s.Equal(models.SourceUserInput, fv.Provenance.Source)
		s.Len(s.history(ref, fieldLegalName), 1)
	})

	s.Run("top-tier registry cannot overwrite the human value", func() {
		s.False(s.update(ref, fieldLegalName, "Acme Corp V2", models.SourceGLEIF))
		fv := s.field(ref, fieldLegalName)
		s.Equal("Acme Corp", fv.Value)
		s.Equal(models.SourceUserInput, fv.Provenance.Source)
		s.Len(s.history(ref, fieldLegalName), 1)
	})
}

func (s *ServiceSuite) TestScenarioTopTierSupersedesNational() {
	ref := s.freshHandle()

	s.True(s.update(ref, fieldLEI, "5493001KJTIIGC8Y1R1", models.SourceNationalRegistry))
	s.True(s.update(ref, fieldLEI, "5493001KJTIIGC8Y1R12", models.SourceGLEIF))

	fv := s.field(ref, fieldLEI)
	s.Equal("5493001KJTIIGC8Y1R12", fv.Value)
	s.Equal(models.SourceGLEIF, fv.Provenance.Source)
	events := s.history(ref, fieldLEI)
	s.Require().Len(events, 2)
	s.Require().NotNil(events[1].OldValue)
	s.Equal("5493001KJTIIGC8Y1R1", *events[1].OldValue)
}

func (s *ServiceSuite) TestIdenticalValueIsNoChange() {
	ref := s.freshHandle()
	s.True(s.update(ref, fieldLEI, "5493001KJTIIGC8Y1R12", models.SourceNationalRegistry))

	s.True(s.update(ref, fieldLEI, "5493001KJTIIGC8Y1R12", models.SourceGLEIF), "identical value reports success")
	fv := s.field(ref, fieldLEI)
	s.Equal(models.SourceNationalRegistry, fv.Provenance.Source, "provenance is not refreshed")
	s.Len(s.history(ref, fieldLEI), 1)
}

// -----------------------------------------------------------------------------
// Properties
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestHumanWriteAlwaysSucceeds() {
	for _, prior := range models.Sources() {
		s.Run(string(prior), func() {
			ref := s.freshHandle()
			s.True(s.update(ref, fieldLegalName, "prior", prior))
			s.True(s.update(ref, fieldLegalName, "human", models.SourceUserInput))
			fv := s.field(ref, fieldLegalName)
			s.Equal("human", fv.Value)
			s.Equal(models.SourceUserInput, fv.Provenance.Source)
		})
	}
}

func (s *ServiceSuite) TestAutomatedFeedsNeverReplaceHuman() {
	for _, incoming := range models.Sources() {
		if !incoming.IsAutomated() {
			continue
		}
		s.Run(string(incoming), func() {
			ref := s.freshHandle()
			s.True(s.update(ref, fieldLegalName, "human", models.SourceUserInput))
			s.False(s.update(ref, fieldLegalName, "feed", incoming))
			fv := s.field(ref, fieldLegalName)
			s.Equal("human", fv.Value)
			s.Equal(models.SourceUserInput, fv.Provenance.Source)
			s.Len(s.history(ref, fieldLegalName), 1)
		})
	}
}

func (s *ServiceSuite) TestEachAcceptedWriteAppendsOneEvent() {
	ref := s.freshHandle()
	values := []string{"A", "B", "C", "D"}
	for i, v := range values {
		s.True(s.update(ref, fieldLegalName, v, models.SourceUserInput))
		events := s.history(ref, fieldLegalName)
		s.Require().Len(events, i+1)
		last := events[i]
		s.Equal(v, last.NewValue)
		if i == 0 {
			s.Nil(last.OldValue)
		} else {
			s.Require().NotNil(last.OldValue)
			s.Equal(values[i-1], *last.OldValue)
		}
		s.Equal("operator-7", last.ActorID, "actor falls back to request context")
	}
	s.NoError(s.svc.VerifyHistory(s.ctx, s.entityOf(ref), fieldLegalName))
}

func (s *ServiceSuite) TestProvenanceMergesIntoOwnSlotOnly() {
	ref := s.freshHandle()
	s.True(s.update(ref, fieldLegalName, "Acme", models.SourceUserInput))
	s.True(s.update(ref, fieldLEI, "5493001KJTIIGC8Y1R12", models.SourceGLEIF))

	s.Equal(models.SourceUserInput, s.field(ref, fieldLegalName).Provenance.Source)
	s.Equal(models.SourceGLEIF, s.field(ref, fieldLEI).Provenance.Source)
}

// -----------------------------------------------------------------------------
// Derived operations
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestApplyCandidateCarriesEvidence() {
	ref := s.freshHandle()
	ok, err := s.svc.ApplyCandidate(s.ctx, ref, models.Candidate{
		FieldNo: fieldLEI, Value: "5493001KJTIIGC8Y1R12", Source: models.SourceGLEIF,
		EvidenceID: "gleif:5493001KJTIIGC8Y1R12", Confidence: models.Confidence(1.0),
	}, "feed-worker", nil)
	s.Require().NoError(err)
	s.True(ok)

	fv := s.field(ref, fieldLEI)
	s.Equal("gleif:5493001KJTIIGC8Y1R12", fv.Provenance.EvidenceID)
	s.Require().NotNil(fv.Provenance.Confidence)
	s.Equal(1.0, *fv.Provenance.Confidence)
	s.Equal("feed-worker", s.history(ref, fieldLEI)[0].ActorID)
}

func (s *ServiceSuite) TestManualOverride() {
	ref := s.freshHandle()
	s.True(s.update(ref, fieldLegalName, "Acme Ltd", models.SourceGLEIF))

	_, err := s.svc.ApplyManualOverride(s.ctx, ref, fieldLegalName, "Acme Limited", "op-1", "  ", nil)
	s.ErrorIs(err, models.ErrReasonRequired)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	ok, err := s.svc.ApplyManualOverride(s.ctx, ref, fieldLegalName, "Acme Limited", "op-1", "registry typo", nil)
	s.Require().NoError(err)
	s.True(ok)

	fv := s.field(ref, fieldLegalName)
	s.Equal(models.SourceUserInput, fv.Provenance.Source)
	s.Equal("op-1", fv.Provenance.VerifiedBy)
	events := s.history(ref, fieldLegalName)
	s.Equal("registry typo", events[1].Reason)
	s.Require().NotNil(events[1].Confidence)
	s.Equal(1.0, *events[1].Confidence)
}

func (s *ServiceSuite) TestApplyCandidatesReportsPerCandidate() {
	ref := s.freshHandle()
	outcomes, err := s.svc.ApplyCandidates(s.ctx, ref, []models.Candidate{
		{FieldNo: fieldLegalName, Value: "Acme", Source: models.SourceNationalRegistry},
		{FieldNo: 999, Value: "x", Source: models.SourceNationalRegistry},
		{FieldNo: fieldLEI, Value: "5493001KJTIIGC8Y1R12", Source: models.SourceNationalRegistry},
	}, "batch", nil)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 3)
	s.True(outcomes[0].Applied)
	s.ErrorIs(outcomes[1].Err, models.ErrUnknownField)
	s.True(outcomes[2].Applied)
}

func (s *ServiceSuite) TestApplyCandidatesWithNothingRoutableCreatesNothing() {
	ref := s.freshHandle()
	outcomes, err := s.svc.ApplyCandidates(s.ctx, ref, []models.Candidate{
		{FieldNo: 90, Value: "note", Source: models.SourceSystem},
	}, "batch", nil)
	s.Require().NoError(err)
	s.ErrorIs(outcomes[0].Err, models.ErrUnmappedField)

	_, found, err := s.resolver.Lookup(s.ctx, id.HandleID(ref.ID))
	s.Require().NoError(err)
	s.False(found)
}

func (s *ServiceSuite) TestApplyCandidatesWithInvalidProvenanceCreatesNothing() {
	tests := []struct {
		name      string
		candidate models.Candidate
		want      error
	}{
		{"unknown source", models.Candidate{FieldNo: fieldLegalName, Value: "Acme", Source: "BOGUS"}, models.ErrUnknownSource},
		{"confidence above one", models.Candidate{FieldNo: fieldLegalName, Value: "Acme", Source: models.SourceGLEIF, Confidence: models.Confidence(1.5)}, nil},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			ref := s.freshHandle()
			outcomes, err := s.svc.ApplyCandidates(s.ctx, ref, []models.Candidate{tt.candidate}, "batch", nil)
			s.Require().NoError(err)
			s.Require().Len(outcomes, 1)
			s.False(outcomes[0].Applied)
			s.True(dErrors.HasCode(outcomes[0].Err, dErrors.CodeValidation))
			if tt.want != nil {
				s.ErrorIs(outcomes[0].Err, tt.want)
			}

			_, found, err := s.resolver.Lookup(s.ctx, id.HandleID(ref.ID))
			s.Require().NoError(err)
			s.False(found, "handle must stay unmaterialized")
		})
	}
}

// -----------------------------------------------------------------------------
// Concurrency
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestConcurrentWritesToOneFieldSerialize() {
	ref := s.freshHandle()
	const n = 40

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := models.SourceGLEIF
			if i%2 == 0 {
				source = models.SourceUserInput
			}
			_, err := s.svc.UpdateField(s.ctx, ref, fieldLegalName, fmt.Sprintf("Acme %d", i),
				models.ProvenanceInput{Source: source, EvidenceID: "ev"}, nil)
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	entityID := s.entityOf(ref)
	s.NoError(s.svc.VerifyHistory(s.ctx, entityID, fieldLegalName))

	events := s.history(ref, fieldLegalName)
	s.Require().NotEmpty(events)
	humanSeen := false
	for i, e := range events {
		s.Equal(int64(i+1), e.Seq, "sequence has no gaps")
		if i > 0 {
			s.Require().NotNil(e.OldValue)
			s.Equal(events[i-1].NewValue, *e.OldValue, "each event chains on the previous value")
		}
		if humanSeen {
			s.Equal(models.SourceUserInput, e.Source, "no automated write after a human one")
		}
		humanSeen = humanSeen || e.Source == models.SourceUserInput
	}

	last := events[len(events)-1]
	fv := s.field(ref, fieldLegalName)
	s.True(fv.Present)
	s.Equal(last.NewValue, fv.Value)
	s.Require().NotNil(fv.Provenance)
	s.Equal(last.Source, fv.Provenance.Source)
}

// -----------------------------------------------------------------------------
// Repeating rows and documents
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestRepeatingRowWrites() {
	ref := s.freshHandle()
	rowID, err := s.svc.CreateRow(s.ctx, ref, models.KindTraders)
	s.Require().NoError(err)

	ok, err := s.svc.UpdateField(s.ctx, ref, fieldTrader, "Jane Doe",
		models.ProvenanceInput{Source: models.SourceUserInput}, &rowID)
	s.Require().NoError(err)
	s.True(ok)

	fv, err := s.svc.GetField(s.ctx, s.entityOf(ref), fieldTrader, &rowID)
	s.Require().NoError(err)
	s.Equal("Jane Doe", fv.Value)

	missing := id.NewRowID()
	_, err = s.svc.UpdateField(s.ctx, ref, fieldTrader, "x", models.ProvenanceInput{Source: models.SourceUserInput}, &missing)
	s.ErrorIs(err, models.ErrRowNotFound)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	rows, err := s.svc.ListRows(s.ctx, s.entityOf(ref), models.KindTraders)
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *ServiceSuite) TestCreateRowRejectsSingletonKind() {
	_, err := s.svc.CreateRow(s.ctx, s.freshHandle(), models.KindIdentity)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestAttachDocument() {
	ref := s.freshHandle()
	rowID, err := s.svc.CreateRow(s.ctx, ref, models.KindTraders)
	s.Require().NoError(err)
	docID := id.NewDocumentID()

	ok, err := s.svc.AttachDocument(s.ctx, ref, fieldAuthority, docID,
		models.ProvenanceInput{Source: models.SourceUserInput}, &rowID)
	s.Require().NoError(err)
	s.True(ok)

	fv, err := s.svc.GetField(s.ctx, s.entityOf(ref), fieldAuthority, &rowID)
	s.Require().NoError(err)
	s.Equal(docID.String(), fv.Value)
	s.Equal(docID.String(), fv.Provenance.EvidenceID)

	_, err = s.svc.AttachDocument(s.ctx, ref, fieldTrader, docID,
		models.ProvenanceInput{Source: models.SourceUserInput}, &rowID)
	s.ErrorIs(err, models.ErrNotDocumentField)
}

// -----------------------------------------------------------------------------
// Dry run
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestEvaluateNeverMutates() {
	ref := s.freshHandle()
	s.True(s.update(ref, fieldLegalName, "Acme", models.SourceUserInput))
	candidate := models.Candidate{FieldNo: fieldLegalName, Value: "Acme Holdings", Source: models.SourceGLEIF}

	var first service.Evaluation
	for i := 0; i < 5; i++ {
		eval, err := s.svc.EvaluateFieldCandidate(s.ctx, ref, candidate, nil)
		s.Require().NoError(err)
		if i == 0 {
			first = eval
		}
		s.Equal(first, eval)
	}
	s.Equal(service.ActionBlocked, first.Action)
	s.Require().NotNil(first.CurrentValue)
	s.Equal("Acme", *first.CurrentValue)
	s.Equal(models.SourceUserInput, *first.CurrentSource)
	s.Len(s.history(ref, fieldLegalName), 1)
}

func (s *ServiceSuite) TestEvaluateActions() {
	ref := s.freshHandle()
	s.True(s.update(ref, fieldLEI, "5493001KJTIIGC8Y1R1", models.SourceNationalRegistry))

	eval, err := s.svc.EvaluateFieldCandidate(s.ctx, ref,
		models.Candidate{FieldNo: fieldLEI, Value: "5493001KJTIIGC8Y1R12", Source: models.SourceGLEIF}, nil)
	s.Require().NoError(err)
	s.Equal(service.ActionProposeUpdate, eval.Action)

	eval, err = s.svc.EvaluateFieldCandidate(s.ctx, ref,
		models.Candidate{FieldNo: fieldLEI, Value: "5493001KJTIIGC8Y1R1", Source: models.SourceGLEIF}, nil)
	s.Require().NoError(err)
	s.Equal(service.ActionNoChange, eval.Action)
}

func (s *ServiceSuite) TestEvaluateUnknownHandleIsNewRecord() {
	ref := s.freshHandle()
	eval, err := s.svc.EvaluateFieldCandidate(s.ctx, ref,
		models.Candidate{FieldNo: fieldLegalName, Value: "Acme", Source: models.SourceGLEIF}, nil)
	s.Require().NoError(err)
	s.Equal(service.ActionProposeUpdate, eval.Action)
	s.True(eval.NewRecord)

	_, found, err := s.resolver.Lookup(s.ctx, id.HandleID(ref.ID))
	s.Require().NoError(err)
	s.False(found, "evaluation must not materialize the entity")
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (s *ServiceSuite) TestGetFieldOnUnknownEntity() {
	_, err := s.svc.GetField(s.ctx, id.NewEntityID(), fieldLegalName, nil)
	s.ErrorIs(err, models.ErrEntityNotFound)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateByUnknownEntityID() {
	_, err := s.svc.UpdateField(s.ctx, models.ForEntity(id.NewEntityID()), fieldLegalName, "x",
		models.ProvenanceInput{Source: models.SourceUserInput}, nil)
	s.ErrorIs(err, models.ErrEntityNotFound)
}
