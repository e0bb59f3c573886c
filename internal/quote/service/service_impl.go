package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	"github.com/smallbiznis/jobledger/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Dispatcher financedomain.Dispatcher
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	dispatcher financedomain.Dispatcher
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("quote.service"),
		genID:      p.GenID,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateQuoteRequest) (*domain.Quote, error) {
	if len(req.LineItems) == 0 {
		return nil, domain.ErrNoLineItems
	}

	total := decimal.Zero
	lines := make([]domain.QuoteLineItem, 0, len(req.LineItems))
	for _, input := range req.LineItems {
		lines = append(lines, domain.QuoteLineItem{
			ID:                 s.genID.Generate(),
			EstimateLineItemID: input.EstimateLineItemID,
			Description:        input.Description,
			Cost:               input.Cost.Round(2),
		})
		total = total.Add(input.Cost)
	}

	record := domain.Quote{
		ID:          s.genID.Generate(),
		ProjectID:   req.ProjectID,
		EstimateID:  req.EstimateID,
		PayeeID:     req.PayeeID,
		Status:      domain.QuoteStatusPending,
		TotalAmount: total.Round(2),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proj projectdomain.Project
		if err := tx.Select("id").First(&proj, "id = ?", req.ProjectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return projectdomain.ErrProjectNotFound
			}
			return err
		}

		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].QuoteID = record.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		record.LineItems = lines

		// A pending quote does not change totals yet, but the mutation
		// still runs through the dispatcher so the snapshot can never go
		// stale on a missed path.
		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableQuotes, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Quote, error) {
	var record domain.Quote
	err := s.db.WithContext(ctx).Preload("LineItems").First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrQuoteNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID snowflake.ID) ([]domain.Quote, error) {
	var rows []domain.Quote
	err := s.db.WithContext(ctx).
		Preload("LineItems").
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) Accept(ctx context.Context, id snowflake.ID) (*domain.Quote, error) {
	var record domain.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("LineItems").First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrQuoteNotFound
			}
			return err
		}
		if record.Status != domain.QuoteStatusPending {
			return domain.ErrInvalidTransition
		}

		scoped := make([]snowflake.ID, 0, len(record.LineItems))
		for _, line := range record.LineItems {
			if line.EstimateLineItemID != nil {
				scoped = append(scoped, *line.EstimateLineItemID)
			}
		}

		// Acceptance is exclusive per estimate line item: a competing
		// accepted quote must be rejected before this one can win the
		// scope.
		if len(scoped) > 0 {
			var conflicts int64
			err := tx.Model(&domain.QuoteLineItem{}).
				Joins("JOIN quotes ON quotes.id = quote_line_items.quote_id").
				Where("quotes.status = ? AND quotes.id <> ? AND quote_line_items.estimate_line_item_id IN ?",
					domain.QuoteStatusAccepted, id, scoped).
				Count(&conflicts).Error
			if err != nil {
				return err
			}
			if conflicts > 0 {
				return domain.ErrQuoteScopeConflict
			}
		}

		now := time.Now().UTC()
		result := tx.Model(&domain.Quote{}).
			Where("id = ? AND status = ?", id, domain.QuoteStatusPending).
			Updates(map[string]any{
				"status":      domain.QuoteStatusAccepted,
				"accepted_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		record.Status = domain.QuoteStatusAccepted
		record.AcceptedAt = &now
		record.UpdatedAt = now

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableQuotes, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("quote accepted",
		zap.String("quote_id", record.ID.String()),
		zap.String("project_id", record.ProjectID.String()),
	)
	return &record, nil
}

func (s *Service) Reject(ctx context.Context, id snowflake.ID) (*domain.Quote, error) {
	var record domain.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrQuoteNotFound
			}
			return err
		}
		if record.Status != domain.QuoteStatusPending && record.Status != domain.QuoteStatusAccepted {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		result := tx.Model(&domain.Quote{}).
			Where("id = ? AND status = ?", id, record.Status).
			Updates(map[string]any{
				"status":      domain.QuoteStatusRejected,
				"accepted_at": nil,
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		record.Status = domain.QuoteStatusRejected
		record.AcceptedAt = nil
		record.UpdatedAt = now

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableQuotes, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
