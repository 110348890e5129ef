package websocket

import "encoding/json"

// ActionConsoleLine tags one console line pushed to the client.
const ActionConsoleLine = "console_line"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

func encode(action string, payload interface{}) []byte {
	b, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		// Payloads are plain strings; this cannot fail.
		return nil
	}
	return b
}

// NewConsoleLineMessage wraps one console history line.
func NewConsoleLineMessage(line string) []byte {
	return encode(ActionConsoleLine, line)
}
