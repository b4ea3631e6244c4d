package domain

import (
	"reflect"
	"time"
)

type MemoryRecord struct {
	ID          string
	Kind        string
	Description string
	CreatedAt   time.Time
	ItemCount   int
	Payload     any
}

// RecordSummary is a MemoryRecord without its payload.
type RecordSummary struct {
	ID          string
	Kind        string
	Description string
	CreatedAt   time.Time
	ItemCount   int
}

func (r MemoryRecord) Summary() RecordSummary {
	return RecordSummary{
		ID:          r.ID,
		Kind:        r.Kind,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		ItemCount:   r.ItemCount,
	}
}

// ItemCount is the number of top-level items in a payload: the length of a
// list, zero for nil and one for anything else.
func ItemCount(payload any) int {
	if payload == nil {
		return 0
	}
	if _, ok := payload.([]byte); ok {
		return 1
	}

	value := reflect.ValueOf(payload)
	switch value.Kind() {
	case reflect.Slice, reflect.Array:
		return value.Len()
	default:
		return 1
	}
}

type BackupRecord struct {
	ID        string
	IsAuto    bool
	Comment   string
	CreatedAt time.Time
}
