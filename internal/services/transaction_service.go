package services

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/screens"
)

// TransactionCreator is the write side of the remote store.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, p *auth.Principal, tx api.NewTransaction) (api.CreateResult, error)
}

// Created is the outcome of a successful add.
type Created struct {
	Transaction api.NewTransaction
	Result      api.CreateResult
	Message     string
}

// TransactionService orchestrates adds across the remote store and the
// activity event stream.
type TransactionService struct {
	creator     TransactionCreator
	categorizer api.Categorizer
	publisher   events.Publisher
	logger      *log.Logger
}

func NewTransactionService(creator TransactionCreator, categorizer api.Categorizer, publisher events.Publisher, logger *log.Logger) *TransactionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		creator:     creator,
		categorizer: categorizer,
		publisher:   publisher,
		logger:      logger.WithComponent(log.ComponentService),
	}
}

// Create validates the draft, sends it to the store and announces it.
func (s *TransactionService) Create(ctx context.Context, p *auth.Principal, d screens.Draft) (Created, error) {
	tx, err := d.Build()
	if err != nil {
		return Created{}, err
	}

	res, err := s.creator.CreateTransaction(ctx, p, tx)
	if err != nil {
		return Created{}, fmt.Errorf("create transaction: %w", err)
	}

	recordID := ""
	if res.Record != nil {
		recordID = res.Record.ID
	}
	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldRecordID, recordID,
		log.FieldDescription, tx.Description,
		log.FieldAmount, tx.Amount,
		log.FieldCategory, tx.Category)

	// The store already has the record; a lost event only costs the export.
	msg := events.NewTransactionRecorded(recordID, tx.Description, tx.Amount, tx.Category, p.Name())
	if err := s.publisher.PublishTransactionRecorded(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventID, msg.EventID.String(),
			log.FieldError, err)
	}

	return Created{Transaction: tx, Result: res, Message: d.SuccessMessage()}, nil
}

// Categorize suggests a category label for description.
func (s *TransactionService) Categorize(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", core.ErrEmptyDescription
	}
	category, err := s.categorizer.Categorize(ctx, description)
	if err != nil {
		s.logger.WarnContext(ctx, "Categorization failed",
			log.FieldOperation, log.OpCategorize,
			log.FieldError, err)
		return "", fmt.Errorf("categorize: %w", err)
	}
	return category, nil
}

// Close releases the event publisher.
func (s *TransactionService) Close() error {
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
