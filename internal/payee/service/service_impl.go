package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/jobledger/internal/payee/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payee.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePayeeRequest) (*domain.Payee, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidPayeeName
	}
	payeeType := req.Type
	if payeeType == "" {
		payeeType = domain.PayeeTypeVendor
	}
	if !payeeType.Valid() {
		return nil, domain.ErrInvalidPayeeType
	}

	record := domain.Payee{
		ID:         s.genID.Generate(),
		Name:       name,
		Type:       payeeType,
		Email:      strings.TrimSpace(req.Email),
		HourlyRate: req.HourlyRate.Round(2),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Payee, error) {
	var record domain.Payee
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrPayeeNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Payee, error) {
	var rows []domain.Payee
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
