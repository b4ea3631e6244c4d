package toml

import "fmt"

const currentSchemaVersion = 1

type transcriptSchema struct {
	Version   int             `toml:"version"`
	SessionID string          `toml:"session_id"`
	CreatedAt string          `toml:"created_at"`
	UpdatedAt string          `toml:"updated_at"`
	Messages  []messageSchema `toml:"messages"`
}

type messageSchema struct {
	Role    string `toml:"role"`
	Content string `toml:"content"`
}

func (s *transcriptSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s transcriptSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported transcript schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}
