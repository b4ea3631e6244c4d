package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// replyShape names the response layout decodeReply recognised.
type replyShape string

const (
	shapeOpenAI  replyShape = "openai"
	shapeOllama  replyShape = "ollama"
	shapeError   replyShape = "error"
	shapeUnknown replyShape = "unknown"
)

// decodeReply extracts the assistant message from either dialect. NDJSON
// bodies (a streamed ollama reply) are folded line by line. Shapes it does
// not recognise come back as an empty reply and shapeUnknown.
func decodeReply(body []byte) (ports.ChatReply, replyShape, string) {
	if gjson.ValidBytes(body) {
		return decodeOne(body)
	}
	return foldStream(splitNDJSON(body))
}

func decodeOne(body []byte) (ports.ChatReply, replyShape, string) {
	root := gjson.ParseBytes(body)

	if message := root.Get("choices.0.message"); message.IsObject() {
		return parseMessage(message), shapeOpenAI, ""
	}
	if message := root.Get("message"); message.IsObject() {
		return parseMessage(message), shapeOllama, ""
	}
	if errValue := root.Get("error"); errValue.Exists() {
		text := errValue.Get("message").String()
		if text == "" {
			text = errValue.String()
		}
		return ports.ChatReply{}, shapeError, text
	}
	return ports.ChatReply{}, shapeUnknown, ""
}

func foldStream(lines [][]byte) (ports.ChatReply, replyShape, string) {
	var (
		content strings.Builder
		reply   ports.ChatReply
		shape   = shapeUnknown
	)
	for _, line := range lines {
		chunk, chunkShape, errText := decodeOne(line)
		switch chunkShape {
		case shapeError:
			return ports.ChatReply{}, shapeError, errText
		case shapeUnknown:
			continue
		}
		shape = chunkShape
		content.WriteString(chunk.Content)
		reply.ToolCalls = append(reply.ToolCalls, chunk.ToolCalls...)
	}
	reply.Content = content.String()
	return reply, shape, ""
}

func parseMessage(message gjson.Result) ports.ChatReply {
	reply := ports.ChatReply{Content: message.Get("content").String()}

	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		name := strings.TrimSpace(call.Get("function.name").String())
		if name == "" {
			return true
		}

		id := call.Get("id").String()
		if id == "" {
			id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}

		var raw json.RawMessage
		if arguments := call.Get("function.arguments"); arguments.Exists() {
			raw = json.RawMessage(arguments.Raw)
		}

		reply.ToolCalls = append(reply.ToolCalls, domain.ToolCall{
			ID:        id,
			Name:      name,
			Arguments: domain.ArgumentsFromJSON(raw),
		})
		return true
	})

	return reply
}

func splitNDJSON(body []byte) [][]byte {
	var lines [][]byte
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}
