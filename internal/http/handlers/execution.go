package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	executionsRepo "github.com/fenwicklabs/coderunner/internal/data/repos/executions"
	"github.com/fenwicklabs/coderunner/internal/http/response"
	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
)

type ExecutionHandler struct {
	executions executionsRepo.Repo
}

func NewExecutionHandler(executions executionsRepo.Repo) *ExecutionHandler {
	return &ExecutionHandler{executions: executions}
}

func (h *ExecutionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "invalid execution id"))
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	exec, err := h.executions.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.RespondAPIErr(c, apierr.Wrap(apierr.KindExecutionNotFound, err, "execution %s not found", id))
			return
		}
		response.RespondAPIErr(c, apierr.Wrap(apierr.KindInternal, err, "failed to load execution"))
		return
	}

	out := gin.H{"execution_id": exec.ID, "status": exec.Status}
	if executionsDomain.Status(exec.Status).Terminal() {
		out["stdout"] = exec.Stdout
		out["stderr"] = exec.Stderr
		out["execution_time_ms"] = exec.ExecutionTimeMs
	}
	response.RespondOK(c, out)
}
