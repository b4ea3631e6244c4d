package domain

import (
	"strings"
	"time"
)

type RecordID string

// Record is one entry in the local record store.
type Record struct {
	ID        RecordID
	Name      string
	Email     string
	Phone     string
	Notes     string
	Tags      []string
	Photo     []byte
	UpdatedAt time.Time
}

func (r Record) Matches(query string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return true
	}

	haystacks := []string{r.Name, r.Email, r.Phone, r.Notes}
	haystacks = append(haystacks, r.Tags...)
	for _, haystack := range haystacks {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

func (r Record) HasTag(tag string) bool {
	for _, existing := range r.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// NormalizeTag lowercases and trims a tag name.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
