// Package validator reports whether a profile module of an entity holds
// enough data to pass a workflow gate. Findings are advisory data; the
// validator never blocks writes.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/metrics"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/sentinel"
)

// Store is the read-only view of profile data the validator needs.
type Store interface {
	FindEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	FindRow(ctx context.Context, entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) (*models.Row, error)
	ListRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error)
}

// Result is the outcome of validating one module.
type Result struct {
	Module models.ProfileKind `json:"module"`
	Valid  bool               `json:"valid"`
	Errors []string           `json:"errors"`
}

// Party types accepted in the stakeholders module.
const (
	PartyIndividual = "INDIVIDUAL"
	PartyCorporate  = "CORPORATE"
)

type Validator struct {
	store   Store
	fields  *fields.Registry
	logger  *slog.Logger
	metrics *metrics.Metrics
	rules   map[models.ProfileKind]rule
}

// rule inspects the loaded rows of one module and returns its findings.
type rule func(rows []*models.Row) []string

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

func WithFields(r *fields.Registry) Option {
	return func(v *Validator) { v.fields = r }
}

func New(store Store, opts ...Option) *Validator {
	v := &Validator{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.fields == nil {
		v.fields = fields.Default()
	}
	v.rules = map[models.ProfileKind]rule{
		models.KindIdentity:          v.identity,
		models.KindRegisteredAddress: v.registeredAddress,
		models.KindTraders:           v.traders,
		models.KindStakeholders:      v.stakeholders,
	}
	return v
}

// ValidateModule loads module data for the entity and applies that module's
// completeness rules. An unknown entity or module is an error; incomplete data
// is not.
func (v *Validator) ValidateModule(ctx context.Context, entityID id.EntityID, module models.ProfileKind) (Result, error) {
	check, ok := v.rules[module]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown module %q", module))
	}
	if _, err := v.store.FindEntity(ctx, entityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, dErrors.Wrap(models.ErrEntityNotFound, dErrors.CodeNotFound, fmt.Sprintf("entity %s not found", entityID))
		}
		return Result{}, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to load entity")
	}

	rows, err := v.load(ctx, entityID, module)
	if err != nil {
		return Result{}, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to load module data")
	}

	res := Result{Module: module, Errors: []string{}}
	if len(rows) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%s has no data", module))
	} else {
		res.Errors = append(res.Errors, check(rows)...)
	}
	res.Valid = len(res.Errors) == 0
	if !res.Valid {
		v.metrics.IncrementValidationFailure(string(module))
		v.logger.DebugContext(ctx, "module incomplete",
			"entity_id", entityID.String(),
			"module", string(module),
			"errors", len(res.Errors),
		)
	}
	return res, nil
}

// ValidateAll validates every module concurrently, in catalog kind order.
func (v *Validator) ValidateAll(ctx context.Context, entityID id.EntityID) ([]Result, error) {
	kinds := models.Kinds()
	results := make([]Result, len(kinds))
	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			res, err := v.ValidateModule(ctx, entityID, kind)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (v *Validator) load(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error) {
	if kind.Repeating() {
		return v.store.ListRows(ctx, entityID, kind)
	}
	row, err := v.store.FindRow(ctx, entityID, kind, nil)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*models.Row{row}, nil
}

// value returns the trimmed value of the catalog field key in row.
func (v *Validator) value(row *models.Row, key string) string {
	val, _ := row.Value(v.fields.MustKey(key).Column)
	return strings.TrimSpace(val)
}

func (v *Validator) identity(rows []*models.Row) []string {
	row := rows[0]
	var errs []string
	if v.value(row, "legal_name") == "" {
		errs = append(errs, "identity: legal_name is required")
	}
	if v.value(row, "lei") == "" && v.value(row, "registration_number") == "" {
		errs = append(errs, "identity: lei or registration_number is required")
	}
	return errs
}

func (v *Validator) registeredAddress(rows []*models.Row) []string {
	row := rows[0]
	var errs []string
	for _, key := range []string{"address_line1", "country"} {
		if v.value(row, key) == "" {
			errs = append(errs, fmt.Sprintf("registered_address: %s is required", key))
		}
	}
	return errs
}

func (v *Validator) traders(rows []*models.Row) []string {
	var errs []string
	for _, row := range rows {
		if v.value(row, "trader_authority_document") == "" && v.value(row, "trader_authority_attestation") == "" {
			errs = append(errs, fmt.Sprintf("traders row %s: authority document or attestation is required", rowLabel(row)))
		}
		if v.value(row, "trader_email") == "" {
			errs = append(errs, fmt.Sprintf("traders row %s: trader_email is required", rowLabel(row)))
		}
	}
	return errs
}

func (v *Validator) stakeholders(rows []*models.Row) []string {
	var errs []string
	for _, row := range rows {
		switch party := strings.ToUpper(v.value(row, "party_type")); party {
		case PartyIndividual:
			for _, key := range []string{"first_name", "last_name"} {
				if v.value(row, key) == "" {
					errs = append(errs, fmt.Sprintf("stakeholders row %s: %s is required for %s", rowLabel(row), key, PartyIndividual))
				}
			}
		case PartyCorporate:
			if v.value(row, "company_name") == "" {
				errs = append(errs, fmt.Sprintf("stakeholders row %s: company_name is required for %s", rowLabel(row), PartyCorporate))
			}
		case "":
			errs = append(errs, fmt.Sprintf("stakeholders row %s: party_type is required", rowLabel(row)))
		default:
			errs = append(errs, fmt.Sprintf("stakeholders row %s: party_type %q is not %s or %s", rowLabel(row), party, PartyIndividual, PartyCorporate))
		}
	}
	return errs
}

func rowLabel(row *models.Row) string {
	if row.ID == nil {
		return "-"
	}
	return row.ID.String()
}
