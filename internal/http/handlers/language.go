package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	catalogueRepo "github.com/fenwicklabs/coderunner/internal/data/repos/catalogue"
	"github.com/fenwicklabs/coderunner/internal/http/response"
	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
)

type LanguageHandler struct {
	catalogue catalogueRepo.Repo
}

func NewLanguageHandler(catalogue catalogueRepo.Repo) *LanguageHandler {
	return &LanguageHandler{catalogue: catalogue}
}

type languageSummary struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Runtime            string    `json:"runtime"`
	Version            string    `json:"version"`
	DefaultTimeLimitMs int       `json:"default_time_limit_ms"`
	DefaultMemoryMB    int       `json:"default_memory_mb"`
}

func (h *LanguageHandler) List(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	langs, err := h.catalogue.List(dbc)
	if err != nil {
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to list languages"))
		return
	}
	out := make([]languageSummary, 0, len(langs))
	for _, l := range langs {
		out = append(out, languageSummary{
			ID:                 l.ID,
			Name:               l.Name,
			Runtime:            l.Runtime,
			Version:            l.Version,
			DefaultTimeLimitMs: l.DefaultTimeLimitMs,
			DefaultMemoryMB:    l.DefaultMemoryMB,
		})
	}
	response.RespondOK(c, gin.H{"total": len(out), "languages": out})
}

func (h *LanguageHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "invalid language id"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	lang, err := h.catalogue.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.RespondAPIErr(c, apierr.Wrap(apierr.KindLanguageNotFound, err, "language %s not found", id))
			return
		}
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to load language"))
		return
	}
	response.RespondOK(c, gin.H{
		"id":                    lang.ID,
		"name":                  lang.Name,
		"runtime":               lang.Runtime,
		"version":               lang.Version,
		"file_name":             lang.FileName,
		"template_code":         lang.TemplateCode,
		"default_time_limit_ms": lang.DefaultTimeLimitMs,
		"default_memory_mb":     lang.DefaultMemoryMB,
	})
}
