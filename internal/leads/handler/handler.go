package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"buyer_crm_backend/internal/auth"
	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/importer"
	"buyer_crm_backend/internal/leads/management"
	"buyer_crm_backend/internal/leads/query"
	"buyer_crm_backend/internal/leads/transport"
	"buyer_crm_backend/internal/leads/validation"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/httpkit"
	"buyer_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	maxBodyBytes   = 64 << 10
	maxImportBytes = 2 << 20

	exportFilename = "buyers.csv"
)

// envelopeKeys are accepted in a PUT body next to the lead fields and never validated as fields.
var envelopeKeys = []string{"id", "updatedAt", "createdAt", "ownerId"}

type Handler struct {
	leads   *management.Service
	queries *query.Service
	imports *importer.Pipeline
	leadVal *validation.Validator
	val     *validator.Validator
}

func New(leads *management.Service, queries *query.Service, imports *importer.Pipeline, leadVal *validation.Validator, val *validator.Validator) *Handler {
	return &Handler{leads: leads, queries: queries, imports: imports, leadVal: leadVal, val: val}
}

// RegisterRoutes mounts the buyer routes. writes guards single-record mutations and
// imports guards bulk imports; either may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writes, imports gin.HandlerFunc) {
	writeChain := chain(writes)
	importChain := chain(imports)

	rg.GET("", h.List)
	rg.POST("", append(writeChain, h.Create)...)
	rg.GET("/export", h.Export)
	rg.POST("/import", append(importChain, h.Import)...)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", append(writeChain, h.Update)...)
	rg.DELETE("/:id", append(writeChain, h.Delete)...)
	rg.GET("/:id/history", h.History)
}

func chain(mw gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return nil
	}
	return []gin.HandlerFunc{mw}
}

func (h *Handler) Me(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	httpkit.OK(c, transport.MeResponse{ID: who.ID, Role: who.Role, Email: who.Email})
}

func (h *Handler) List(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var req transport.ListBuyersQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if h.bindFailed(c, req) {
		return
	}

	page, err := h.queries.List(c.Request.Context(), criteria(req), who)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, page)
}

func (h *Handler) Create(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	raw, err := readObject(c, maxBodyBytes)
	if httpkit.HandleError(c, err) {
		return
	}
	delete(raw, "ownerId")

	candidate, err := h.leadVal.Validate(raw)
	if httpkit.HandleError(c, err) {
		return
	}

	lead, err := h.leads.Create(c.Request.Context(), candidate, who)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, domain.ToView(lead))
}

func (h *Handler) GetByID(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.leads.Get(c.Request.Context(), id, who)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, domain.ToView(lead))
}

func (h *Handler) Update(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}

	var envelope transport.UpdateEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if h.bindFailed(c, envelope) {
		return
	}

	raw, err := decodeObject(bytes.NewReader(body))
	if httpkit.HandleError(c, err) {
		return
	}
	for _, key := range envelopeKeys {
		delete(raw, key)
	}

	candidate, err := h.leadVal.Validate(raw)
	if httpkit.HandleError(c, err) {
		return
	}

	opts := management.UpdateOptions{ExpectedUpdatedAt: envelope.UpdatedAt}
	if envelope.OwnerID.Set {
		if envelope.OwnerID.Value == nil {
			httpkit.HandleError(c, apperr.BadRequest("ownerId cannot be cleared"))
			return
		}
		opts.OwnerID = envelope.OwnerID.Value
	}

	lead, err := h.leads.Update(c.Request.Context(), id, candidate, who, opts)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, domain.ToView(lead))
}

func (h *Handler) Delete(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.leads.Delete(c.Request.Context(), id, who)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) History(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.HistoryQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if h.bindFailed(c, req) {
		return
	}

	views, err := h.leads.History(c.Request.Context(), id, who, management.HistoryQuery{Limit: req.Limit, Order: req.Order})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.HistoryResponse{Items: views})
}

// Import accepts either a JSON array of row objects or a text/csv body.
func (h *Handler) Import(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var rows []importer.RawImportRow
	var err error
	if isCSV(c.GetHeader("Content-Type")) {
		rows, err = importer.ParseCSV(body)
	} else {
		rows, err = decodeRows(body)
	}
	if httpkit.HandleError(c, err) {
		return
	}

	result, err := h.imports.ImportBatch(c.Request.Context(), rows, who)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ImportResponse{Imported: result.Imported})
}

func (h *Handler) Export(c *gin.Context) {
	who, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var req transport.ExportBuyersQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if h.bindFailed(c, req) {
		return
	}

	cr := criteria(req.ListBuyersQuery)
	cr.SortBy = req.Sort
	cr.SortOrder = req.Direction

	var buf bytes.Buffer
	if _, err := h.queries.Export(c.Request.Context(), cr, who, &buf); httpkit.HandleError(c, err) {
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// bindFailed runs struct tag validation on a bound request and reports failures.
func (h *Handler) bindFailed(c *gin.Context, req interface{}) bool {
	fields, err := h.val.Fields(req)
	if err != nil {
		return httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
	}
	if len(fields) > 0 {
		return httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(fields))
	}
	return false
}

func criteria(q transport.ListBuyersQuery) query.Criteria {
	return query.Criteria{
		City:         strings.TrimSpace(q.City),
		PropertyType: strings.TrimSpace(q.PropertyType),
		Status:       strings.TrimSpace(q.Status),
		Timeline:     strings.TrimSpace(q.Timeline),
		Search:       strings.TrimSpace(q.SearchTerm()),
		Page:         q.Page,
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return uuid.Nil, false
	}
	return id, true
}

func readObject(c *gin.Context, limit int64) (map[string]any, error) {
	return decodeObject(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
}

// decodeObject keeps numbers as json.Number so whole-number checks see the literal.
func decodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, decodeError(err)
	}
	if raw == nil {
		return nil, apperr.BadRequest("request body must be a JSON object")
	}
	return raw, nil
}

func decodeRows(r io.Reader) ([]importer.RawImportRow, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []importer.RawImportRow
	if err := dec.Decode(&rows); err != nil {
		return nil, decodeError(err)
	}
	if rows == nil {
		return nil, apperr.BadRequest("request body must be a JSON array of rows")
	}
	return rows, nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.BadRequest("request body too large")
	}
	return apperr.Wrap(apperr.KindBadRequest, msgInvalidRequest, err)
}

func isCSV(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/csv"
}
