package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/jobledger/internal/project/domain"
	"github.com/smallbiznis/jobledger/pkg/db"
	"github.com/smallbiznis/jobledger/pkg/db/pagination"
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
		log:   p.Log.Named("project.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	number := strings.TrimSpace(req.Number)
	name := strings.TrimSpace(req.Name)
	if number == "" {
		return nil, domain.ErrInvalidStatus
	}
	if name == "" {
		name = number
	}

	record := domain.Project{
		ID:         s.genID.Generate(),
		Number:     number,
		Name:       name,
		ClientName: strings.TrimSpace(req.ClientName),
		Status:     domain.ProjectStatusEstimating,
		Metadata:   req.Metadata,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateNumber
		}
		return nil, err
	}

	s.log.Info("project created",
		zap.String("project_id", record.ID.String()),
		zap.String("number", record.Number),
	)
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Project, error) {
	var record domain.Project
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProjectsRequest) (domain.ListProjectsResponse, error) {
	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Model(&domain.Project{}).Order("id ASC").Limit(limit + 1)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListProjectsResponse{}, err
		}
		if cursor.ID != "" {
			lastID, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return domain.ListProjectsResponse{}, err
			}
			query = query.Where("id > ?", lastID)
		}
	}

	var rows []domain.Project
	if err := query.Find(&rows).Error; err != nil {
		return domain.ListProjectsResponse{}, err
	}

	resp := domain.ListProjectsResponse{}
	if len(rows) > limit {
		rows = rows[:limit]
		resp.HasMore = true
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: rows[len(rows)-1].ID.String()})
		if err != nil {
			return domain.ListProjectsResponse{}, err
		}
		resp.NextPageToken = token
	}
	resp.Projects = rows
	return resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, to domain.ProjectStatus) (*domain.Project, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var record domain.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrProjectNotFound
			}
			return err
		}
		if !record.Status.CanTransition(to) {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		result := tx.Model(&domain.Project{}).
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
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
