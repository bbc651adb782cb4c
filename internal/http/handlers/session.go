package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fenwicklabs/coderunner/internal/admission"
	sessionsDomain "github.com/fenwicklabs/coderunner/internal/domain/sessions"
	sessionsRepo "github.com/fenwicklabs/coderunner/internal/data/repos/sessions"
	executionsRepo "github.com/fenwicklabs/coderunner/internal/data/repos/executions"
	catalogueRepo "github.com/fenwicklabs/coderunner/internal/data/repos/catalogue"
	"github.com/fenwicklabs/coderunner/internal/http/response"
	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
)

type SessionHandler struct {
	sessions   sessionsRepo.Repo
	catalogue  catalogueRepo.Repo
	executions executionsRepo.Repo
	admission  *admission.Admission
}

func NewSessionHandler(sessions sessionsRepo.Repo, catalogue catalogueRepo.Repo, executions executionsRepo.Repo, adm *admission.Admission) *SessionHandler {
	return &SessionHandler{sessions: sessions, catalogue: catalogue, executions: executions, admission: adm}
}

type createSessionRequest struct {
	LanguageID uuid.UUID `json:"language_id"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LanguageID == uuid.Nil {
		response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "language_id is required"))
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	lang, err := h.catalogue.GetByID(dbc, req.LanguageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.RespondAPIErr(c, apierr.Wrap(apierr.KindLanguageNotFound, err, "language %s not found", req.LanguageID))
			return
		}
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to look up language"))
		return
	}

	session := &sessionsDomain.Session{
		ID:         uuid.New(),
		LanguageID: lang.ID,
		SourceCode: lang.TemplateCode,
	}
	if _, err := h.sessions.Create(dbc, session); err != nil {
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to create session"))
		return
	}
	response.RespondCreated(c, gin.H{"session_id": session.ID, "status": session.Status})
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, err := h.sessions.GetByID(dbc, id)
	if err != nil {
		h.respondLookupErr(c, id, err)
		return
	}
	lang, err := h.catalogue.GetByID(dbc, session.LanguageID)
	if err != nil {
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to load session's language"))
		return
	}
	response.RespondOK(c, gin.H{
		"session_id":  session.ID,
		"status":      session.Status,
		"source_code": session.SourceCode,
		"created_at":  session.CreatedAt,
		"updated_at":  session.UpdatedAt,
		"language": gin.H{
			"id":      lang.ID,
			"name":    lang.Name,
			"runtime": lang.Runtime,
		},
	})
}

type updateSessionRequest struct {
	SourceCode string `json:"source_code"`
}

func (h *SessionHandler) UpdateSource(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "invalid request body"))
		return
	}
	if len(req.SourceCode) == 0 {
		response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "source_code must not be empty"))
		return
	}
	if len(req.SourceCode) > sessionsDomain.MaxSourceBytes {
		response.RespondAPIErr(c, apierr.New(apierr.KindSourceTooLarge, "source_code exceeds %d bytes", sessionsDomain.MaxSourceBytes))
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, err := h.sessions.UpdateSource(dbc, id, req.SourceCode)
	if err != nil {
		h.respondLookupErr(c, id, err)
		return
	}
	response.RespondOK(c, gin.H{"session_id": session.ID, "status": session.Status})
}

func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, err := h.sessions.Close(dbc, id)
	if err != nil {
		h.respondLookupErr(c, id, err)
		return
	}
	response.RespondOK(c, gin.H{"session_id": session.ID, "status": session.Status})
}

type runRequest struct {
	TimeLimitMs   int `json:"time_limit_ms"`
	MemoryLimitMB int `json:"memory_limit_mb"`
}

func (h *SessionHandler) Run(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "invalid request body"))
			return
		}
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, err := h.sessions.GetByID(dbc, id)
	if err != nil {
		h.respondLookupErr(c, id, err)
		return
	}
	lang, err := h.catalogue.GetByID(dbc, session.LanguageID)
	if err != nil {
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to load session's language"))
		return
	}

	timeLimitMs := req.TimeLimitMs
	if timeLimitMs <= 0 {
		timeLimitMs = lang.DefaultTimeLimitMs
	}
	memoryLimitMB := req.MemoryLimitMB
	if memoryLimitMB <= 0 {
		memoryLimitMB = lang.DefaultMemoryMB
	}

	result, err := h.admission.Submit(c.Request.Context(), id, timeLimitMs, memoryLimitMB)
	if err != nil {
		response.RespondAPIErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"execution_id": result.ExecutionID, "status": result.Status})
}

func (h *SessionHandler) ListExecutions(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if _, err := h.sessions.GetByID(dbc, id); err != nil {
		h.respondLookupErr(c, id, err)
		return
	}
	execs, err := h.executions.ListBySession(dbc, id, limit)
	if err != nil {
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to list executions"))
		return
	}
	response.RespondOK(c, gin.H{"session_id": id, "executions": execs})
}

func (h *SessionHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) respondLookupErr(c *gin.Context, id uuid.UUID, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindSessionNotFound, err, "session %s not found", id))
		return
	}
	response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to load session"))
}

func parsePositiveInt(raw string) (int, error) {
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, errors.New("not a positive integer")
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
