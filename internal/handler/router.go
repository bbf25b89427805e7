package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contatus/contatus/internal/middleware"
)

type RouterDeps struct {
	Contacts      *ContactHandler
	Tags          *TagHandler
	Imports       *ImportHandler
	Org           *OrgHandler
	JWTSecret     []byte
	ImportLimiter time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/contacts/template", deps.Imports.Template)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.GET("/contacts", deps.Contacts.List)
	authGroup.POST("/contacts", deps.Contacts.Create)
	authGroup.GET("/contacts/:id", deps.Contacts.Get)
	authGroup.PUT("/contacts/:id", deps.Contacts.Update)
	authGroup.DELETE("/contacts/:id", deps.Contacts.Delete)

	importGroup := authGroup.Group("")
	if deps.ImportLimiter > 0 {
		importGroup.Use(middleware.RateLimit(deps.ImportLimiter))
	}
	importGroup.POST("/contacts/import", deps.Imports.Upload)
	authGroup.POST("/contacts/import/columns", deps.Imports.Columns)
	authGroup.GET("/contacts/import/:job_id/status", deps.Imports.Status)

	authGroup.POST("/tags", deps.Tags.Create)
	authGroup.GET("/tags", deps.Tags.List)
	authGroup.DELETE("/tags/:id", deps.Tags.Delete)

	authGroup.GET("/organization/usage", deps.Org.Usage)
}
