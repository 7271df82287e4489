// Package mocks provides a recording Telegram sender for tests.
package mocks

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// SentMessage captures a message sent via MockSender.
type SentMessage struct {
	ChatID any
	Text   string
}

// SentDocument captures a document sent via MockSender.
type SentDocument struct {
	ChatID   any
	Filename string
	Caption  string
}

// MockSender records Telegram calls instead of performing them.
type MockSender struct {
	mu sync.RWMutex

	SentMessages  []SentMessage
	SentDocuments []SentDocument

	// SendMessageError allows simulating SendMessage failures.
	SendMessageError error
	// SendDocumentError allows simulating SendDocument failures.
	SendDocumentError error

	// NextMessageID is auto-incremented for each sent message.
	NextMessageID int
}

// NewMockSender creates a new MockSender instance.
func NewMockSender() *MockSender {
	return &MockSender{NextMessageID: 1000}
}

// SendMessage records the message.
func (m *MockSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendMessageError != nil {
		return nil, m.SendMessageError
	}

	m.SentMessages = append(m.SentMessages, SentMessage{ChatID: params.ChatID, Text: params.Text})
	msgID := m.NextMessageID
	m.NextMessageID++

	return &models.Message{
		ID:   msgID,
		Chat: models.Chat{ID: chatIDToInt64(params.ChatID)},
		Text: params.Text,
	}, nil
}

// SendDocument records the document.
func (m *MockSender) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendDocumentError != nil {
		return nil, m.SendDocumentError
	}

	filename := ""
	if upload, ok := params.Document.(*models.InputFileUpload); ok {
		filename = upload.Filename
	}
	m.SentDocuments = append(m.SentDocuments, SentDocument{
		ChatID:   params.ChatID,
		Filename: filename,
		Caption:  params.Caption,
	})
	msgID := m.NextMessageID
	m.NextMessageID++

	return &models.Message{
		ID:       msgID,
		Chat:     models.Chat{ID: chatIDToInt64(params.ChatID)},
		Caption:  params.Caption,
		Document: &models.Document{FileID: "mock_file_id", FileName: filename},
	}, nil
}

// SentMessageCount returns the number of messages sent.
func (m *MockSender) SentMessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentMessages)
}

// LastSentMessage returns the most recently sent message, or nil if none.
func (m *MockSender) LastSentMessage() *SentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentMessages) == 0 {
		return nil
	}
	return &m.SentMessages[len(m.SentMessages)-1]
}

// LastSentDocument returns the most recently sent document, or nil if none.
func (m *MockSender) LastSentDocument() *SentDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentDocuments) == 0 {
		return nil
	}
	return &m.SentDocuments[len(m.SentDocuments)-1]
}

func chatIDToInt64(chatID any) int64 {
	switch v := chatID.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
