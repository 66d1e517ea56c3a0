// Package handler exposes the inspection and override surface of the master
// data engine over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"masterdata/internal/masterdata/documents"
	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/normalizer"
	"masterdata/internal/masterdata/service"
	"masterdata/internal/masterdata/validator"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/httputil"
	"masterdata/pkg/requestcontext"
)

// Writes is the write engine surface used by the handler.
type Writes interface {
	ApplyManualOverride(ctx context.Context, ref models.EntityRef, fieldNo models.FieldNo, value, actorID, reason string, rowID *id.RowID) (bool, error)
	ApplyCandidates(ctx context.Context, ref models.EntityRef, candidates []models.Candidate, actorID string, rowID *id.RowID) ([]service.CandidateOutcome, error)
	AttachDocument(ctx context.Context, ref models.EntityRef, fieldNo models.FieldNo, documentID id.DocumentID, in models.ProvenanceInput, rowID *id.RowID) (bool, error)
	EvaluateFieldCandidate(ctx context.Context, ref models.EntityRef, c models.Candidate, rowID *id.RowID) (service.Evaluation, error)
	CreateRow(ctx context.Context, ref models.EntityRef, kind models.ProfileKind) (id.RowID, error)
	ListRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error)
	GetField(ctx context.Context, entityID id.EntityID, fieldNo models.FieldNo, rowID *id.RowID) (service.FieldValue, error)
	History(ctx context.Context, entityID id.EntityID, fieldNo models.FieldNo) ([]models.AuditEvent, error)
}

// Validator runs module completeness checks.
type Validator interface {
	ValidateModule(ctx context.Context, entityID id.EntityID, module models.ProfileKind) (validator.Result, error)
	ValidateAll(ctx context.Context, entityID id.EntityID) ([]validator.Result, error)
}

// Documents registers uploaded files.
type Documents interface {
	Upload(ctx context.Context, in documents.UploadInput) (id.DocumentID, error)
	Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
}

// Handler wires HTTP endpoints to the master data services.
type Handler struct {
	writes      Writes
	validator   Validator
	documents   Documents
	normalizers map[models.Source]normalizer.Normalizer
	maxUpload   int64
	logger      *slog.Logger
}

// New constructs a handler. Normalizers are keyed by the source they map.
func New(writes Writes, v Validator, docs Documents, logger *slog.Logger, normalizers ...normalizer.Normalizer) *Handler {
	h := &Handler{
		writes:      writes,
		validator:   v,
		documents:   docs,
		normalizers: make(map[models.Source]normalizer.Normalizer, len(normalizers)),
		maxUpload:   documents.DefaultMaxSize,
		logger:      logger,
	}
	for _, n := range normalizers {
		h.normalizers[n.Source()] = n
	}
	return h
}

// WithMaxUpload caps multipart uploads.
func (h *Handler) WithMaxUpload(n int64) *Handler {
	if n > 0 {
		h.maxUpload = n
	}
	return h
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/entities/{ref}", func(r chi.Router) {
		h.writeRoutes(r, models.RefEntity)
		r.Get("/fields/{fieldNo}", h.HandleGetField)
		r.Get("/fields/{fieldNo}/history", h.HandleHistory)
		r.Get("/rows/{kind}", h.HandleListRows)
		r.Get("/validation", h.HandleValidateAll)
		r.Get("/validation/{module}", h.HandleValidateModule)
		r.Post("/documents/{fieldNo}", h.HandleUpload)
	})
	r.Route("/handles/{ref}", func(r chi.Router) {
		h.writeRoutes(r, models.RefHandle)
	})
	r.Get("/documents/{documentID}", h.HandleGetDocument)
}

func (h *Handler) writeRoutes(r chi.Router, kind models.RefKind) {
	r.Post("/fields/{fieldNo}/override", h.withRef(kind, h.HandleOverride))
	r.Post("/fields/{fieldNo}/document", h.withRef(kind, h.HandleAttachDocument))
	r.Post("/candidates", h.withRef(kind, h.HandleApplyCandidates))
	r.Post("/candidates/evaluate", h.withRef(kind, h.HandleEvaluate))
	r.Post("/ingest/{source}", h.withRef(kind, h.HandleIngest))
	r.Post("/rows/{kind}", h.withRef(kind, h.HandleCreateRow))
}

type refHandler func(w http.ResponseWriter, r *http.Request, ref models.EntityRef)

func (h *Handler) withRef(kind models.RefKind, next refHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "ref")
		var ref models.EntityRef
		if kind == models.RefHandle {
			handle, err := id.ParseHandleID(raw)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			ref = models.ForHandle(handle)
		} else {
			entityID, err := id.ParseEntityID(raw)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			ref = models.ForEntity(entityID)
		}
		next(w, r, ref)
	}
}

// HandleOverride handles POST .../fields/{fieldNo}/override.
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request, ref models.EntityRef) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	fieldNo, ok := fieldParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	actorID := requestcontext.ActorID(ctx)
	applied, err := h.writes.ApplyManualOverride(ctx, ref, fieldNo, req.Value, actorID, req.Reason, req.rowID)
	if err != nil {
		h.fail(w, r, "manual override failed", err, "field_no", int(fieldNo))
		return
	}
	h.logger.InfoContext(ctx, "manual override",
		"request_id", requestID,
		"actor_id", actorID,
		"ref", ref.ID.String(),
		"field_no", int(fieldNo),
		"applied", applied,
	)
	httputil.WriteJSON(w, http.StatusOK, WriteResponse{Applied: applied})
}

// HandleAttachDocument handles POST .../fields/{fieldNo}/document.
func (h *Handler) HandleAttachDocument(w http.ResponseWriter, r *http.Request, ref models.EntityRef) {
	ctx := r.Context()
	fieldNo, ok := fieldParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AttachDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	actorID := requestcontext.ActorID(ctx)
	applied, err := h.writes.AttachDocument(ctx, ref, fieldNo, req.documentID, models.ProvenanceInput{
		Source:     models.SourceUserInput,
		EvidenceID: req.EvidenceID,
		VerifiedBy: actorID,
		ActorID:    actorID,
		Reason:     req.Reason,
	}, req.rowID)
	if err != nil {
		h.fail(w, r, "attach document failed", err, "field_no", int(fieldNo))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WriteResponse{Applied: applied})
}

// HandleApplyCandidates handles POST .../candidates.
func (h *Handler) HandleApplyCandidates(w http.ResponseWriter, r *http.Request, ref models.EntityRef) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CandidatesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.applyCandidates(w, r, ref, req.Candidates, req.rowID)
}

// HandleIngest handles POST .../ingest/{source}: the body is a raw registry
// payload mapped by that source's normalizer.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request, ref models.EntityRef) {
	source, err := models.ParseSource(strings.ToUpper(chi.URLParam(r, "source")))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unknown source"))
		return
	}
	n, ok := h.normalizers[source]
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no normalizer for source "+string(source)))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read body"))
		return
	}
	candidates, err := normalizer.MapJSON(n, body, r.URL.Query().Get("evidence_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid payload"))
		return
	}
	h.applyCandidates(w, r, ref, candidates, nil)
}

func (h *Handler) applyCandidates(w http.ResponseWriter, r *http.Request, ref models.EntityRef, candidates []models.Candidate, rowID *id.RowID) {
	ctx := r.Context()
	outcomes, err := h.writes.ApplyCandidates(ctx, ref, candidates, requestcontext.ActorID(ctx), rowID)
	if err != nil {
		h.fail(w, r, "apply candidates failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOutcomes(outcomes))
}

// HandleEvaluate handles POST .../candidates/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request, ref models.EntityRef) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	eval, err := h.writes.EvaluateFieldCandidate(ctx, ref, req.candidate(), req.rowID)
	if err != nil {
		h.fail(w, r, "evaluate candidate failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvaluation(eval))
}

// HandleCreateRow handles POST .../rows/{kind}.
func (h *Handler) HandleCreateRow(w http.ResponseWriter, r *http.Request, ref models.EntityRef) {
	kind, err := models.ParseProfileKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unknown profile kind"))
		return
	}
	rowID, err := h.writes.CreateRow(r.Context(), ref, kind)
	if err != nil {
		h.fail(w, r, "create row failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RowCreatedResponse{RowID: rowID.String(), Kind: string(kind)})
}

// HandleListRows handles GET /entities/{ref}/rows/{kind}.
func (h *Handler) HandleListRows(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityParam(w, r)
	if !ok {
		return
	}
	kind, err := models.ParseProfileKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unknown profile kind"))
		return
	}
	rows, err := h.writes.ListRows(r.Context(), entityID, kind)
	if err != nil {
		h.fail(w, r, "list rows failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRows(rows))
}

// HandleGetField handles GET /entities/{ref}/fields/{fieldNo}.
func (h *Handler) HandleGetField(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityParam(w, r)
	if !ok {
		return
	}
	fieldNo, ok := fieldParam(w, r)
	if !ok {
		return
	}
	rowID, err := parseRowID(r.URL.Query().Get("row_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fv, err := h.writes.GetField(r.Context(), entityID, fieldNo, rowID)
	if err != nil {
		h.fail(w, r, "get field failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFieldValue(fv))
}

// HandleHistory handles GET /entities/{ref}/fields/{fieldNo}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityParam(w, r)
	if !ok {
		return
	}
	fieldNo, ok := fieldParam(w, r)
	if !ok {
		return
	}
	events, err := h.writes.History(r.Context(), entityID, fieldNo)
	if err != nil {
		h.fail(w, r, "history failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(fieldNo, events))
}

// HandleValidateModule handles GET /entities/{ref}/validation/{module}.
func (h *Handler) HandleValidateModule(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityParam(w, r)
	if !ok {
		return
	}
	res, err := h.validator.ValidateModule(r.Context(), entityID, models.ProfileKind(chi.URLParam(r, "module")))
	if err != nil {
		h.fail(w, r, "validation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleValidateAll handles GET /entities/{ref}/validation.
func (h *Handler) HandleValidateAll(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityParam(w, r)
	if !ok {
		return
	}
	results, err := h.validator.ValidateAll(r.Context(), entityID)
	if err != nil {
		h.fail(w, r, "validation failed", err)
		return
	}
	valid := true
	for _, res := range results {
		valid = valid && res.Valid
	}
	httputil.WriteJSON(w, http.StatusOK, ValidationResponse{Valid: valid, Modules: results})
}

// HandleUpload handles multipart POST /entities/{ref}/documents/{fieldNo}.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID, ok := entityParam(w, r)
	if !ok {
		return
	}
	fieldNo, ok := fieldParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart upload"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer file.Close()
	rowID, err := parseRowID(r.FormValue("row_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	docID, err := h.documents.Upload(ctx, documents.UploadInput{
		EntityID:    entityID,
		RowID:       rowID,
		FieldNo:     fieldNo,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
		UploadedBy:  requestcontext.ActorID(ctx),
	})
	if err != nil {
		h.fail(w, r, "document upload failed", err, "field_no", int(fieldNo))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, DocumentCreatedResponse{DocumentID: docID.String()})
}

// HandleGetDocument handles GET /documents/{documentID}.
func (h *Handler) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.documents.Get(r.Context(), docID)
	if err != nil {
		h.fail(w, r, "get document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg, append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"error", err,
	}, attrs...)...)
	httputil.WriteError(w, err)
}

func entityParam(w http.ResponseWriter, r *http.Request) (id.EntityID, bool) {
	entityID, err := id.ParseEntityID(chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EntityID{}, false
	}
	return entityID, true
}

func fieldParam(w http.ResponseWriter, r *http.Request) (models.FieldNo, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "fieldNo"))
	if err != nil || n <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "field number must be a positive integer"))
		return 0, false
	}
	return models.FieldNo(n), true
}
