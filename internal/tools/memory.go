package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func (c *Catalog) listMemory(ctx context.Context, args map[string]any) (any, error) {
	summaries, err := c.cache.List(ctx, stringArg(args, "kind"))
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, map[string]any{
			"memory_id":   summary.ID,
			"kind":        summary.Kind,
			"description": summary.Description,
			"created_at":  summary.CreatedAt.UTC().Format(time.RFC3339),
			"item_count":  summary.ItemCount,
		})
	}
	return map[string]any{"count": len(items), "results": items}, nil
}

// exportRecords reloads a cached payload and writes it to disk, so photo bytes
// never pass through the conversation.
func (c *Catalog) exportRecords(ctx context.Context, args map[string]any) (any, error) {
	memoryID, err := requireString(args, "memory_id")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	target, err := c.exportPath(name)
	if err != nil {
		return nil, err
	}

	record, err := c.cache.Load(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if record.Kind != KindRecords {
		return nil, fmt.Errorf("memory %s holds %q results, not records", memoryID, record.Kind)
	}

	data, err := json.MarshalIndent(record.Payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	if err := os.MkdirAll(c.exportDir, 0o700); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	c.logger.Info().Str("memory_id", memoryID).Str("path", target).Int("items", record.ItemCount).Msg("records exported")
	return map[string]any{"path": target, "item_count": record.ItemCount, "bytes": len(data)}, nil
}

func (c *Catalog) exportPath(name string) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("export path %q must be a plain file name", name)
	}
	if filepath.Ext(name) != ".json" {
		name += ".json"
	}
	return filepath.Join(c.exportDir, name), nil
}
