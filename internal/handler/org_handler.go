package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/contatus/contatus/internal/pkg/response"
	"github.com/contatus/contatus/internal/service"
)

type OrgHandler struct {
	orgs *service.OrganizationService
}

func NewOrgHandler(orgs *service.OrganizationService) *OrgHandler {
	return &OrgHandler{orgs: orgs}
}

func (h *OrgHandler) Usage(c *gin.Context) {
	usage, err := h.orgs.Usage(c.Request.Context(), getOrgID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, usage)
}
