// Package tools binds the record store and the result memory cache to the
// tools a model may call.
package tools

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bnema/askdb/internal/application"
	"github.com/bnema/askdb/internal/ports"
	"github.com/rs/zerolog"
)

const (
	KindRecords = "records"

	defaultSearchLimit = 20
	maxSearchLimit     = 500
	// Results above this size go to the memory cache even without photos.
	inlineResultLimit = 20
)

type Options struct {
	Store     ports.RecordStore
	Cache     ports.MemoryCache
	ExportDir string
	Logger    zerolog.Logger
}

type Catalog struct {
	store     ports.RecordStore
	cache     ports.MemoryCache
	exportDir string
	logger    zerolog.Logger
}

func New(opts Options) (*Catalog, error) {
	if opts.Store == nil {
		return nil, errors.New("record store is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("memory cache is required")
	}
	if strings.TrimSpace(opts.ExportDir) == "" {
		return nil, errors.New("export dir is required")
	}

	return &Catalog{
		store:     opts.Store,
		cache:     opts.Cache,
		exportDir: filepath.Clean(opts.ExportDir),
		logger:    opts.Logger,
	}, nil
}

// Registry returns every tool in the catalog.
func (c *Catalog) Registry() (*application.Registry, error) {
	return application.NewRegistry(c.Tools()...)
}

func (c *Catalog) Tools() []application.Tool {
	return []application.Tool{
		{
			Name:        "search_records",
			Description: "Search records by name, email, phone, notes or tag. Large results and results with photos are stored in memory and returned as a memory_id.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"query":          {Type: application.TypeString, Description: "Case-insensitive text to look for; empty matches every record"},
					"limit":          {Type: application.TypeInteger, Description: fmt.Sprintf("Maximum number of records (default %d)", defaultSearchLimit)},
					"include_photos": {Type: application.TypeBoolean, Description: "Include photo bytes; the result is then stored in memory"},
				},
				Required: []string{"query"},
			},
			Invoke: c.searchRecords,
		},
		{
			Name:        "get_record",
			Description: "Fetch one record by id. Photos are reported by size only.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"id": {Type: application.TypeString, Description: "Record id"},
				},
				Required: []string{"id"},
			},
			Invoke: c.getRecord,
		},
		{
			Name:        "list_memory",
			Description: "List stored results that can be passed to other tools by memory_id.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"kind": {Type: application.TypeString, Description: "Only list results of this kind"},
				},
			},
			Invoke: c.listMemory,
		},
		{
			Name:        "export_records",
			Description: "Write a stored search result to a JSON export file without loading it into the conversation.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"memory_id": {Type: application.TypeString, Description: "Id returned by search_records"},
					"path":      {Type: application.TypeString, Description: "Export file name, written inside the export directory"},
				},
				Required: []string{"memory_id", "path"},
			},
			Invoke: c.exportRecords,
		},
		{
			Name:        "create_tag",
			Description: "Create a tag so it can be applied to records.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"name": {Type: application.TypeString, Description: "Tag name"},
				},
				Required: []string{"name"},
			},
			Write:  true,
			Invoke: c.createTag,
		},
		{
			Name:        "tag_record",
			Description: "Apply an existing tag to a record.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"record_id": {Type: application.TypeString, Description: "Record id"},
					"tag":       {Type: application.TypeString, Description: "Tag created with create_tag"},
				},
				Required: []string{"record_id", "tag"},
			},
			Write:  true,
			Invoke: c.tagRecord,
		},
		{
			Name:        "delete_record",
			Description: "Delete a record permanently.",
			Parameters: application.Schema{
				Properties: map[string]application.Property{
					"id": {Type: application.TypeString, Description: "Record id"},
				},
				Required: []string{"id"},
			},
			Write:  true,
			Invoke: c.deleteRecord,
		},
	}
}

func stringArg(args map[string]any, name string) string {
	value, _ := args[name].(string)
	return strings.TrimSpace(value)
}

func intArg(args map[string]any, name string, fallback int) int {
	if value, ok := args[name].(int); ok {
		return value
	}
	return fallback
}

func boolArg(args map[string]any, name string) bool {
	value, _ := args[name].(bool)
	return value
}

func requireString(args map[string]any, name string) (string, error) {
	value := stringArg(args, name)
	if value == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	return value, nil
}
