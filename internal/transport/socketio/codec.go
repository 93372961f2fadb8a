package socketio

import (
	"encoding/json"
	"fmt"

	"github.com/vk/lazyflow/internal/servant"
)

// EventCommand is the event name used for every command.
const EventCommand = "command"

func encodeCommand(cmd servant.Command) (string, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encoding command: %w", err)
	}
	return string(b), nil
}

func decodeCommand(data any) (servant.Command, error) {
	var cmd servant.Command
	s, ok := data.(string)
	if !ok {
		return cmd, fmt.Errorf("command must be a string, got %T", data)
	}
	if err := json.Unmarshal([]byte(s), &cmd); err != nil {
		return cmd, fmt.Errorf("decoding command: %w", err)
	}
	return cmd, nil
}

func encodeResponse(resp servant.Response) string {
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(servant.Fail(1, err.Error()))
	}
	return string(b)
}

func decodeResponse(args []any) (servant.Response, error) {
	var resp servant.Response
	if len(args) == 0 {
		return resp, fmt.Errorf("empty acknowledgement")
	}
	s, ok := args[0].(string)
	if !ok {
		return resp, fmt.Errorf("acknowledgement must be a string, got %T", args[0])
	}
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return resp, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}
