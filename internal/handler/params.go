package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// pathString binds a required string path parameter.
func pathString(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	if v == "" {
		return "", fmt.Errorf("parameter %s is required", name)
	}
	return v, nil
}

// pathUUID binds a required UUID path parameter.
func pathUUID(r *http.Request, name string) (openapi_types.UUID, error) {
	var v openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return v, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return v, nil
}

// queryInt binds an optional integer query parameter; nil when absent.
func queryInt(r *http.Request, name string) (*int, error) {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return nil, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return v, nil
}

// queryEpochMillis binds an optional epoch-milliseconds query parameter.
func queryEpochMillis(r *http.Request, name string) (*time.Time, error) {
	var ms *int64
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &ms); err != nil {
		return nil, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	if ms == nil {
		return nil, nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t, nil
}
