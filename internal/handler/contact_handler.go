package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/contatus/contatus/internal/pkg/errcode"
	"github.com/contatus/contatus/internal/pkg/response"
	"github.com/contatus/contatus/internal/service"
)

type ContactHandler struct {
	contacts *service.ContactService
}

func NewContactHandler(contacts *service.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

func (h *ContactHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	result, err := h.contacts.List(c.Request.Context(), getOrgID(c),
		c.Query("search"), c.Query("status"), page, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ContactHandler) Get(c *gin.Context) {
	detail, err := h.contacts.Get(c.Request.Context(), getOrgID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, detail)
}

func (h *ContactHandler) Create(c *gin.Context) {
	var input service.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	contact, err := h.contacts.Create(c.Request.Context(), getOrgID(c), input)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, contact)
}

func (h *ContactHandler) Update(c *gin.Context) {
	var input service.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	contact, err := h.contacts.Update(c.Request.Context(), getOrgID(c), c.Param("id"), input)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, contact)
}

func (h *ContactHandler) Delete(c *gin.Context) {
	if err := h.contacts.Delete(c.Request.Context(), getOrgID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
