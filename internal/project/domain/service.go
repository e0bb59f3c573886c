package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProjectNotFound   = errors.New("project_not_found")
	ErrDuplicateNumber   = errors.New("duplicate_project_number")
	ErrInvalidStatus     = errors.New("invalid_project_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
)

type CreateProjectRequest struct {
	Number     string         `json:"number"`
	Name       string         `json:"name"`
	ClientName string         `json:"client_name"`
	Metadata   map[string]any `json:"metadata"`
}

type ListProjectsRequest struct {
	Status    ProjectStatus
	PageToken string
	PageSize  int
}

type ListProjectsResponse struct {
	Projects      []Project `json:"projects"`
	NextPageToken string    `json:"next_page_token"`
	HasMore       bool      `json:"has_more"`
}

type Service interface {
	Create(ctx context.Context, req CreateProjectRequest) (*Project, error)
	Get(ctx context.Context, id snowflake.ID) (*Project, error)
	List(ctx context.Context, req ListProjectsRequest) (ListProjectsResponse, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, to ProjectStatus) (*Project, error)
}
