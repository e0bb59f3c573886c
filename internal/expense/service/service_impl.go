package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/jobledger/internal/expense/domain"
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
		log:        p.Log.Named("expense.service"),
		genID:      p.GenID,
		dispatcher: p.Dispatcher,
	}
}

var hundred = decimal.NewFromInt(100)

func (s *Service) Create(ctx context.Context, req domain.CreateExpenseRequest) (*domain.Expense, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !req.Category.Valid() {
		return nil, domain.ErrInvalidAmount
	}

	splits, err := s.materializeSplits(amount, req.Splits)
	if err != nil {
		return nil, err
	}

	expenseDate := req.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = time.Now().UTC()
	}

	record := domain.Expense{
		ID:          s.genID.Generate(),
		ProjectID:   req.ProjectID,
		PayeeID:     req.PayeeID,
		Category:    req.Category,
		Amount:      amount,
		ExpenseDate: expenseDate,
		Status:      domain.ExpenseStatusPending,
		IsSplit:     len(splits) > 0,
		Memo:        strings.TrimSpace(req.Memo),
		Metadata:    req.Metadata,
	}

	affected := []snowflake.ID{req.ProjectID}
	for _, split := range splits {
		affected = append(affected, split.ProjectID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pid := range uniqueIDs(affected) {
			var proj projectdomain.Project
			if err := tx.Select("id").First(&proj, "id = ?", pid).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return projectdomain.ErrProjectNotFound
				}
				return err
			}
		}

		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if len(splits) > 0 {
			for i := range splits {
				splits[i].ExpenseID = record.ID
			}
			if err := tx.Create(&splits).Error; err != nil {
				return err
			}
			record.Splits = splits
		}

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableExpenses, uniqueIDs(affected)...)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("expense recorded",
		zap.String("expense_id", record.ID.String()),
		zap.Bool("is_split", record.IsSplit),
		zap.Int("split_count", len(record.Splits)),
	)
	return &record, nil
}

// materializeSplits validates the split set and converts percent-mode
// splits to concrete amounts. The final split absorbs the rounding
// remainder so the set always sums to the parent exactly.
func (s *Service) materializeSplits(amount decimal.Decimal, inputs []domain.SplitInput) ([]domain.ExpenseSplit, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	percentMode := inputs[0].Percent != nil
	for _, input := range inputs {
		if input.ProjectID == 0 {
			return nil, domain.ErrSplitRequiresProjects
		}
		if (input.Percent != nil) != percentMode {
			return nil, domain.ErrSplitPercentMismatch
		}
	}

	splits := make([]domain.ExpenseSplit, 0, len(inputs))
	if percentMode {
		totalPercent := decimal.Zero
		for _, input := range inputs {
			totalPercent = totalPercent.Add(*input.Percent)
		}
		if !totalPercent.Round(2).Equal(hundred) {
			return nil, domain.ErrSplitPercentMismatch
		}

		allocated := decimal.Zero
		for i, input := range inputs {
			var splitAmount decimal.Decimal
			if i == len(inputs)-1 {
				splitAmount = amount.Sub(allocated)
			} else {
				splitAmount = amount.Mul(*input.Percent).Div(hundred).Round(2)
				allocated = allocated.Add(splitAmount)
			}
			pct := input.Percent.Round(4)
			splits = append(splits, domain.ExpenseSplit{
				ID:           s.genID.Generate(),
				ProjectID:    input.ProjectID,
				SplitAmount:  splitAmount,
				SplitPercent: &pct,
			})
		}
		return splits, nil
	}

	total := decimal.Zero
	for _, input := range inputs {
		total = total.Add(input.Amount)
	}
	if !total.Round(2).Equal(amount) {
		return nil, domain.ErrSplitAmountMismatch
	}
	for _, input := range inputs {
		splits = append(splits, domain.ExpenseSplit{
			ID:          s.genID.Generate(),
			ProjectID:   input.ProjectID,
			SplitAmount: input.Amount.Round(2),
		})
	}
	return splits, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Expense, error) {
	var record domain.Expense
	err := s.db.WithContext(ctx).Preload("Splits").First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrExpenseNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID snowflake.ID) ([]domain.Expense, error) {
	var rows []domain.Expense
	err := s.db.WithContext(ctx).
		Preload("Splits").
		Where("project_id = ? OR id IN (?)",
			projectID,
			s.db.Model(&domain.ExpenseSplit{}).Select("expense_id").Where("project_id = ?", projectID),
		).
		Order("expense_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, to domain.ExpenseApprovalStatus) (*domain.Expense, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidTransition
	}

	var record domain.Expense
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Splits").First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrExpenseNotFound
			}
			return err
		}
		if record.Status != domain.ExpenseStatusPending {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		result := tx.Model(&domain.Expense{}).
			Where("id = ? AND status = ?", id, domain.ExpenseStatusPending).
			Updates(map[string]any{"status": to, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		record.Status = to
		record.UpdatedAt = now

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableExpenses, s.affectedProjects(record)...)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record domain.Expense
		if err := tx.Preload("Splits").First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrExpenseNotFound
			}
			return err
		}

		if err := tx.Where("expense_id = ?", id).Delete(&domain.ExpenseSplit{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Expense{}, "id = ?", id).Error; err != nil {
			return err
		}

		return s.dispatcher.OnLedgerMutation(ctx, tx, financedomain.TableExpenses, s.affectedProjects(record)...)
	})
}

// affectedProjects returns the parent project plus every split target; a
// split expense touches more than one snapshot.
func (s *Service) affectedProjects(record domain.Expense) []snowflake.ID {
	affected := []snowflake.ID{record.ProjectID}
	for _, split := range record.Splits {
		affected = append(affected, split.ProjectID)
	}
	return uniqueIDs(affected)
}

func uniqueIDs(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
