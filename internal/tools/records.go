package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/askdb/internal/domain"
)

func (c *Catalog) searchRecords(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	limit := intArg(args, "limit", defaultSearchLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	includePhotos := boolArg(args, "include_photos")

	records, err := c.store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	withPhotos := false
	for _, record := range records {
		if includePhotos && len(record.Photo) > 0 {
			withPhotos = true
			break
		}
	}

	if !withPhotos && len(records) <= inlineResultLimit {
		items := make([]map[string]any, 0, len(records))
		for _, record := range records {
			items = append(items, recordSummary(record))
		}
		return map[string]any{"count": len(items), "records": items}, nil
	}

	payload := make([]any, 0, len(records))
	for _, record := range records {
		payload = append(payload, recordPayload(record, includePhotos))
	}

	description := fmt.Sprintf("%d records matching %q", len(records), query)
	id, err := c.cache.Save(ctx, payload, KindRecords, description)
	if err != nil {
		return nil, fmt.Errorf("store search result: %w", err)
	}
	c.logger.Debug().Str("memory_id", id).Int("items", len(records)).Msg("search result stored in memory")

	return map[string]any{
		"memory_id":  id,
		"item_count": len(records),
		"usage":      fmt.Sprintf("Pass memory_id %q to export_records to write these records to a file.", id),
	}, nil
}

func (c *Catalog) getRecord(ctx context.Context, args map[string]any) (any, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}

	record, err := c.store.GetByID(ctx, domain.RecordID(id))
	if err != nil {
		return nil, err
	}
	return recordSummary(record), nil
}

func (c *Catalog) createTag(ctx context.Context, args map[string]any) (any, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}

	created, err := c.store.CreateTag(ctx, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tag": domain.NormalizeTag(name), "created": created}, nil
}

func (c *Catalog) tagRecord(ctx context.Context, args map[string]any) (any, error) {
	recordID, err := requireString(args, "record_id")
	if err != nil {
		return nil, err
	}
	tagName, err := requireString(args, "tag")
	if err != nil {
		return nil, err
	}
	tag := domain.NormalizeTag(tagName)

	tags, err := c.store.Tags(ctx)
	if err != nil {
		return nil, err
	}
	if !containsTag(tags, tag) {
		return nil, fmt.Errorf("tag %q does not exist; create it with create_tag first", tag)
	}

	record, err := c.store.GetByID(ctx, domain.RecordID(recordID))
	if err != nil {
		return nil, err
	}
	if record.HasTag(tag) {
		return map[string]any{"record_id": recordID, "tags": record.Tags, "changed": false}, nil
	}

	record.Tags = append(record.Tags, tag)
	if err := c.store.Save(ctx, record); err != nil {
		return nil, err
	}
	return map[string]any{"record_id": recordID, "tags": record.Tags, "changed": true}, nil
}

func (c *Catalog) deleteRecord(ctx context.Context, args map[string]any) (any, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}

	if err := c.store.Delete(ctx, domain.RecordID(id)); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": id}, nil
}

func recordSummary(record domain.Record) map[string]any {
	summary := map[string]any{
		"id":   string(record.ID),
		"name": record.Name,
	}
	if record.Email != "" {
		summary["email"] = record.Email
	}
	if record.Phone != "" {
		summary["phone"] = record.Phone
	}
	if record.Notes != "" {
		summary["notes"] = record.Notes
	}
	if len(record.Tags) > 0 {
		summary["tags"] = record.Tags
	}
	if len(record.Photo) > 0 {
		summary["photo_bytes"] = len(record.Photo)
	}
	return summary
}

func recordPayload(record domain.Record, withPhoto bool) map[string]any {
	tags := make([]any, 0, len(record.Tags))
	for _, tag := range record.Tags {
		tags = append(tags, tag)
	}
	payload := map[string]any{
		"id":         string(record.ID),
		"name":       record.Name,
		"email":      record.Email,
		"phone":      record.Phone,
		"notes":      record.Notes,
		"tags":       tags,
		"updated_at": record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if withPhoto && len(record.Photo) > 0 {
		payload["photo"] = record.Photo
	}
	return payload
}

func containsTag(tags []string, tag string) bool {
	for _, existing := range tags {
		if existing == tag {
			return true
		}
	}
	return false
}
