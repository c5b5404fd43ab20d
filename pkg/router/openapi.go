package router

import (
	"fmt"
	"os"
	"path/filepath"

	"nexus-chat/pkg/validator"
)

// AddOpenAPIValidation validates documented requests against the schema at
// schemaPath and serves the schema under /api/docs. It must run before
// SetupRoutes: gin only applies middleware to routes registered after it.
func (r *Router) AddOpenAPIValidation(schemaPath string) error {
	if _, err := os.Stat(schemaPath); err != nil {
		return fmt.Errorf("openapi schema: %w", err)
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		return err
	}
	r.Engine.Use(v.Middleware())

	r.Engine.StaticFile("/api/docs/"+filepath.Base(schemaPath), schemaPath)
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath, "docs", "/api/docs/"+filepath.Base(schemaPath))
	return nil
}
