package repository

import (
	"encoding/json"

	"github.com/pkg/errors"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

// DefaultKeyPrefix matches the storage key the browser widget used for its
// session-scoped copy of the log.
const DefaultKeyPrefix = "chatMessages"

// encodeLog serializes a log as a JSON array in log order.
func encodeLog(messages []models.ChatMessage) ([]byte, error) {
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, errors.Wrap(err, "encode chat log")
	}
	return data, nil
}

// decodeLog parses a stored log. Every record must pass the same checks as a
// freshly built message.
func decodeLog(data []byte) ([]models.ChatMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var messages []models.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errors.Wrapf(chat.ErrCorruptLog, "decode chat log: %v", err)
	}
	for i, msg := range messages {
		valid, err := models.NewChatMessage(msg.ID, msg.Text, msg.Sender, msg.Timestamp)
		if err != nil {
			return nil, errors.Wrapf(chat.ErrCorruptLog, "decode chat log: message %d: %v", i, err)
		}
		messages[i] = valid
	}
	return messages, nil
}
