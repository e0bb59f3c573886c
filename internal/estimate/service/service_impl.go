package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/jobledger/internal/estimate/domain"
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
		log:        p.Log.Named("estimate.service"),
		genID:      p.GenID,
		dispatcher: p.Dispatcher,
	}
}

// transitions gates estimate status changes. Approval is the only path
// into calculations; rejected/expired estimates drop back out.
var transitions = map[domain.EstimateStatus][]domain.EstimateStatus{
	domain.EstimateStatusDraft: {domain.EstimateStatusSent, domain.EstimateStatusApproved, domain.EstimateStatusRejected},
	domain.EstimateStatusSent:  {domain.EstimateStatusApproved, domain.EstimateStatusRejected, domain.EstimateStatusExpired},
}

func canTransition(from, to domain.EstimateStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) Create(ctx context.Context, req domain.CreateEstimateRequest) (*domain.Estimate, error) {
	if len(req.LineItems) == 0 {
		return nil, domain.ErrNoLineItems
	}
	if req.ContingencyPercent.IsNegative() || req.ContingencyAmount.IsNegative() {
		return nil, domain.ErrNegativeContingency
	}

	lines := make([]domain.EstimateLineItem, 0, len(req.LineItems))
	totalAmount := decimal.Zero
	totalCost := decimal.Zero
	for _, input := range req.LineItems {
		if !input.Category.Valid() {
			return nil, domain.ErrInvalidCategory
		}
		line := normalizeLine(input)
		line.ID = s.genID.Generate()
		totalAmount = totalAmount.Add(line.Quantity.Mul(line.PricePerUnit))
		totalCost = totalCost.Add(line.TotalCost)
		lines = append(lines, line)
	}
	totalAmount = totalAmount.Round(2)
	totalCost = totalCost.Round(2)

	contingencyAmount := req.ContingencyAmount.Round(2)
	if contingencyAmount.IsZero() && req.ContingencyPercent.IsPositive() {
		contingencyAmount = totalAmount.Mul(req.ContingencyPercent).Div(decimal.NewFromInt(100)).Round(2)
	}

	record := domain.Estimate{
		ID:                 s.genID.Generate(),
		ProjectID:          req.ProjectID,
		IsCurrentVersion:   true,
		Status:             domain.EstimateStatusDraft,
		TotalAmount:        totalAmount,
		TotalCost:          totalCost,
		ContingencyPercent: req.ContingencyPercent.Round(2),
		ContingencyAmount:  contingencyAmount,
		ContingencyUsed:    decimal.Zero,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proj projectdomain.Project
		if err := tx.Select("id").First(&proj, "id = ?", req.ProjectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return projectdomain.ErrProjectNotFound
			}
			return err
		}

		var maxVersion int
		if err := tx.Model(&domain.Estimate{}).
			Where("project_id = ?", req.ProjectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		record.Version = maxVersion + 1

		// Demote the previous current revision before inserting so the
		// partial unique index never sees two current rows.
		if err := tx.Model(&domain.Estimate{}).
			Where("project_id = ? AND is_current_version = ?", req.ProjectID, true).
			Updates(map[string]any{"is_current_version": false, "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}

		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].EstimateID = record.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		record.LineItems = lines

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableEstimates, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("estimate created",
		zap.String("estimate_id", record.ID.String()),
		zap.String("project_id", record.ProjectID.String()),
		zap.Int("version", record.Version),
	)
	return &record, nil
}

func normalizeLine(input domain.LineItemInput) domain.EstimateLineItem {
	line := domain.EstimateLineItem{
		Category:       input.Category,
		Description:    input.Description,
		PayeeID:        input.PayeeID,
		Quantity:       input.Quantity,
		CostPerUnit:    input.CostPerUnit,
		PricePerUnit:   input.PricePerUnit,
		LaborHours:     input.LaborHours,
		BillingRate:    input.BillingRate,
		ActualCostRate: input.ActualCostRate,
	}

	// Labor lines are commonly entered as hours and rates only; the
	// billing rate is the client-facing cost basis.
	if line.Category == domain.CategoryLaborInternal && line.Quantity.IsZero() && line.LaborHours.IsPositive() {
		line.Quantity = line.LaborHours
		if line.CostPerUnit.IsZero() {
			line.CostPerUnit = line.BillingRate
		}
		if line.PricePerUnit.IsZero() {
			line.PricePerUnit = line.CostPerUnit
		}
	}

	line.TotalCost = line.Quantity.Mul(line.CostPerUnit).Round(2)
	line.TotalMarkup = line.Quantity.Mul(line.PricePerUnit.Sub(line.CostPerUnit)).Round(2)
	return line
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Estimate, error) {
	var record domain.Estimate
	err := s.db.WithContext(ctx).Preload("LineItems").First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrEstimateNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID snowflake.ID) ([]domain.Estimate, error) {
	var rows []domain.Estimate
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) CurrentApproved(ctx context.Context, projectID snowflake.ID) (*domain.Estimate, error) {
	var record domain.Estimate
	err := s.db.WithContext(ctx).
		Preload("LineItems").
		Where("project_id = ? AND is_current_version = ? AND status = ?",
			projectID, true, domain.EstimateStatusApproved).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, to domain.EstimateStatus) (*domain.Estimate, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var record domain.Estimate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrEstimateNotFound
			}
			return err
		}
		if !canTransition(record.Status, to) {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		result := tx.Model(&domain.Estimate{}).
			Where("id = ? AND status = ?", id, record.Status).
			Updates(map[string]any{"status": to, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		record.Status = to
		record.UpdatedAt = now

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableEstimates, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) MarkCurrent(ctx context.Context, id snowflake.ID) (*domain.Estimate, error) {
	var record domain.Estimate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrEstimateNotFound
			}
			return err
		}
		if record.IsCurrentVersion {
			return nil
		}

		// The current version must be the most recent revision; promoting
		// an older one would break the version ordering invariant.
		var maxVersion int
		if err := tx.Model(&domain.Estimate{}).
			Where("project_id = ?", record.ProjectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		if record.Version != maxVersion {
			return domain.ErrNotLatestVersion
		}

		now := time.Now().UTC()
		if err := tx.Model(&domain.Estimate{}).
			Where("project_id = ? AND is_current_version = ?", record.ProjectID, true).
			Updates(map[string]any{"is_current_version": false, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Estimate{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_current_version": true, "updated_at": now}).Error; err != nil {
			return err
		}
		record.IsCurrentVersion = true
		record.UpdatedAt = now

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableEstimates, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) RecordContingencyUse(ctx context.Context, id snowflake.ID, amount decimal.Decimal) (*domain.Estimate, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNegativeContingency
	}

	var record domain.Estimate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrEstimateNotFound
			}
			return err
		}

		now := time.Now().UTC()
		record.ContingencyUsed = record.ContingencyUsed.Add(amount).Round(2)
		record.UpdatedAt = now
		if err := tx.Model(&domain.Estimate{}).
			Where("id = ?", id).
			Updates(map[string]any{"contingency_used": record.ContingencyUsed, "updated_at": now}).Error; err != nil {
			return err
		}

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableEstimates, record.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
