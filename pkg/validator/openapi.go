package validator

import (
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"

	"nexus-chat/pkg/errors"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	swagger    *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator loads the document at schemaPath.
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	swagger, err := load(func(l *openapi3.Loader) (*openapi3.T, error) { return l.LoadFromFile(schemaPath) })
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", schemaPath, err)
	}
	return newValidator(swagger, schemaPath)
}

// NewOpenAPIValidatorFromData builds a validator from an in-memory document.
func NewOpenAPIValidatorFromData(data []byte) (*OpenAPIValidator, error) {
	swagger, err := load(func(l *openapi3.Loader) (*openapi3.T, error) { return l.LoadFromData(data) })
	if err != nil {
		return nil, err
	}
	return newValidator(swagger, "")
}

func newValidator(swagger *openapi3.T, path string) (*OpenAPIValidator, error) {
	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}
	return &OpenAPIValidator{swagger: swagger, router: router, schemaPath: path}, nil
}

func load(fn func(*openapi3.Loader) (*openapi3.T, error)) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := fn(loader)
	if err != nil {
		return nil, err
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}
	return swagger, nil
}

// ReloadSchema reloads the OpenAPI schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	if v.schemaPath == "" {
		return nil
	}
	fresh, err := NewOpenAPIValidator(v.schemaPath)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.swagger = fresh.swagger
	v.router = fresh.router
	return nil
}

// Middleware rejects requests that do not match a documented operation's
// parameters or body. Undocumented routes pass through.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(errors.NewBadRequestError(errors.CodeValidation, fmt.Sprintf("Invalid request: %v", err)))
			c.Abort()
			return
		}
		c.Next()
	}
}
