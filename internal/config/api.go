package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/ledger/pkg/formatting"
	"github.com/JaimeStill/ledger/pkg/middleware"
	"github.com/JaimeStill/ledger/pkg/openapi"
	"github.com/JaimeStill/ledger/pkg/pagination"
)

const defaultMaxBodySize = 4 * 1024 * 1024

var corsEnv = &middleware.CORSEnv{
	Enabled:          "LEDGER_CORS_ENABLED",
	Origins:          "LEDGER_CORS_ORIGINS",
	AllowedMethods:   "LEDGER_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "LEDGER_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "LEDGER_CORS_EXPOSED_HEADERS",
	AllowCredentials: "LEDGER_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "LEDGER_CORS_MAX_AGE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "LEDGER_OPENAPI_TITLE",
	Description: "LEDGER_OPENAPI_DESCRIPTION",
	ServerURL:   "LEDGER_OPENAPI_SERVER_URL",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "LEDGER_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "LEDGER_PAGINATION_MAX_PAGE_SIZE",
	MaxSortFields:   "LEDGER_PAGINATION_MAX_SORT_FIELDS",
}

// APIConfig holds API routing, request limits, CORS, pagination and
// OpenAPI metadata.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Pagination  pagination.Config     `toml:"pagination"`
	OpenAPI     openapi.Config        `toml:"openapi"`
}

// MaxBodySizeBytes returns MaxBodySize in bytes.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil {
		return defaultMaxBodySize
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if _, err := formatting.ParseBytes(c.MaxBodySize); err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return c.OpenAPI.Finalize(openapiEnv)
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "4MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("LEDGER_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("LEDGER_API_MAX_BODY_SIZE"); v != "" {
		c.MaxBodySize = v
	}
}
