package librus

import (
	"encoding/json"
	"fmt"
)

const MessagesEndpoint = "Messages"

type MessageSender struct {
	ID   ID     `json:"Id"`
	Name string `json:"Name"`
}

type Message struct {
	ID       ID            `json:"Id"`
	Subject  string        `json:"Subject"`
	Sender   MessageSender `json:"Sender"`
	SendDate string        `json:"SendDate"`
}

func ParseMessages(body []byte) ([]Message, error) {
	var parsed struct {
		Messages []Message `json:"Messages"`
	}
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	return parsed.Messages, nil
}
