package application

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/askdb/internal/domain"
)

// Normalize turns a tool call's wire arguments into an argument map. Encoded
// strings are decoded, decoded objects are used as-is and every other shape
// fails with an error wrapping domain.ErrInvalidArguments.
func Normalize(call domain.ToolCall) (map[string]any, error) {
	switch args := call.Arguments.(type) {
	case nil:
		return map[string]any{}, nil
	case domain.StringArguments:
		if strings.TrimSpace(args.Encoded) == "" {
			return map[string]any{}, nil
		}
		var values map[string]any
		if err := json.Unmarshal([]byte(args.Encoded), &values); err != nil {
			return nil, normalizeError(call, fmt.Sprintf("arguments string is not a JSON object: %v", err))
		}
		if values == nil {
			return nil, normalizeError(call, "arguments string decodes to null")
		}
		return values, nil
	case domain.ObjectArguments:
		if args.Values == nil {
			return map[string]any{}, nil
		}
		return args.Values, nil
	case domain.InvalidArguments:
		return nil, normalizeError(call, fmt.Sprintf("arguments must be an object or an encoded object, got %s", args.Shape))
	default:
		return nil, normalizeError(call, fmt.Sprintf("unhandled arguments variant %T", args))
	}
}

func normalizeError(call domain.ToolCall, reason string) error {
	return fmt.Errorf("%w: tool call %q (%s): %s", domain.ErrInvalidArguments, call.ID, call.Name, reason)
}
