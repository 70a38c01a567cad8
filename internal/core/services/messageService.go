package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"

	"github.com/go-playground/validator/v10"
)

var messageMessages = map[string]string{
	"Name":    "name is required",
	"Email":   "invalid email format",
	"Message": "message is required",
}

type MessageService struct {
	records  *repository.Records
	ids      *IDAllocator
	logger   ports.LoggerPort
	validate *validator.Validate
	now      func() time.Time
}

func NewMessageService(records *repository.Records, ids *IDAllocator, logger ports.LoggerPort, validate *validator.Validate) *MessageService {
	return &MessageService{
		records:  records,
		ids:      ids,
		logger:   logger,
		validate: validate,
		now:      time.Now,
	}
}

// Save stores a contact message as pending, newest first.
func (s *MessageService) Save(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, validationError(err, messageMessages)
	}

	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Messages}), func(u *repository.UnitOfWork) error {
		messages, err := u.Messages()
		if err != nil {
			return err
		}
		msg.ID = s.ids.NextTimestamp()
		msg.Status = domain.MessagePending
		msg.Response = ""
		msg.RepliedAt = nil
		msg.CreatedAt = s.now().UTC()
		return u.SetMessages(append([]domain.Message{msg}, messages...))
	})
	if err != nil {
		s.logger.Error("Failed to save message", map[string]interface{}{
			"error": err.Error(),
			"email": msg.Email,
		})
		return nil, err
	}

	s.logger.Info("Message received", map[string]interface{}{
		"message_id": msg.ID,
	})
	return &msg, nil
}

func (s *MessageService) List(ctx context.Context) ([]domain.Message, error) {
	return s.records.Messages(ctx)
}

// Reply records the admin response and marks the message replied.
func (s *MessageService) Reply(ctx context.Context, id int64, response string) (*domain.Message, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, domain.NewValidationError("response", "response is required")
	}

	var replied domain.Message
	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Messages}), func(u *repository.UnitOfWork) error {
		messages, err := u.Messages()
		if err != nil {
			return err
		}
		for i := range messages {
			if messages[i].ID != id {
				continue
			}
			now := s.now().UTC()
			messages[i].Response = response
			messages[i].Status = domain.MessageReplied
			messages[i].RepliedAt = &now
			replied = messages[i]
			return u.SetMessages(messages)
		}
		return fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Message replied", map[string]interface{}{
		"message_id": id,
	})
	return &replied, nil
}
