package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/jobledger/internal/changeorder/domain"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
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
		log:        p.Log.Named("changeorder.service"),
		genID:      p.GenID,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateChangeOrderRequest) (*domain.ChangeOrder, error) {
	clientAmount := req.ClientAmount
	costImpact := req.CostImpact

	lines := make([]domain.ChangeOrderLineItem, 0, len(req.LineItems))
	if len(req.LineItems) > 0 {
		lineAmount := decimal.Zero
		lineCost := decimal.Zero
		for _, input := range req.LineItems {
			if !input.Category.Valid() {
				return nil, domain.ErrInvalidStatus
			}
			lines = append(lines, domain.ChangeOrderLineItem{
				ID:          s.genID.Generate(),
				Category:    input.Category,
				Description: input.Description,
				Amount:      input.Amount.Round(2),
				Cost:        input.Cost.Round(2),
			})
			lineAmount = lineAmount.Add(input.Amount)
			lineCost = lineCost.Add(input.Cost)
		}
		// Header amounts follow the itemization when one is provided.
		clientAmount = lineAmount
		costImpact = lineCost
	}

	record := domain.ChangeOrder{
		ID:                  s.genID.Generate(),
		ProjectID:           req.ProjectID,
		Number:              strings.TrimSpace(req.Number),
		Title:               strings.TrimSpace(req.Title),
		Status:              domain.ChangeOrderStatusDraft,
		ClientAmount:        clientAmount.Round(2),
		CostImpact:          costImpact.Round(2),
		IncludesContingency: req.IncludesContingency,
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
		if len(lines) > 0 {
			for i := range lines {
				lines[i].ChangeOrderID = record.ID
			}
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
			record.LineItems = lines
		}

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableChangeOrders, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.ChangeOrder, error) {
	var record domain.ChangeOrder
	err := s.db.WithContext(ctx).Preload("LineItems").First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrChangeOrderNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID snowflake.ID) ([]domain.ChangeOrder, error) {
	var rows []domain.ChangeOrder
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) Submit(ctx context.Context, id snowflake.ID) (*domain.ChangeOrder, error) {
	return s.transition(ctx, id, domain.ChangeOrderStatusPending, domain.ChangeOrderStatusDraft)
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID) (*domain.ChangeOrder, error) {
	return s.transition(ctx, id, domain.ChangeOrderStatusApproved,
		domain.ChangeOrderStatusDraft, domain.ChangeOrderStatusPending)
}

func (s *Service) Reject(ctx context.Context, id snowflake.ID) (*domain.ChangeOrder, error) {
	return s.transition(ctx, id, domain.ChangeOrderStatusRejected,
		domain.ChangeOrderStatusDraft, domain.ChangeOrderStatusPending, domain.ChangeOrderStatusApproved)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, to domain.ChangeOrderStatus, from ...domain.ChangeOrderStatus) (*domain.ChangeOrder, error) {
	var record domain.ChangeOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrChangeOrderNotFound
			}
			return err
		}

		allowed := false
		for _, f := range from {
			if record.Status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": to, "updated_at": now}
		if to == domain.ChangeOrderStatusApproved {
			updates["approved_at"] = now
		}
		result := tx.Model(&domain.ChangeOrder{}).
			Where("id = ? AND status = ?", id, record.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		record.Status = to
		record.UpdatedAt = now
		if to == domain.ChangeOrderStatusApproved {
			record.ApprovedAt = &now
		}

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableChangeOrders, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("change order status updated",
		zap.String("change_order_id", record.ID.String()),
		zap.String("status", string(record.Status)),
	)
	return &record, nil
}
