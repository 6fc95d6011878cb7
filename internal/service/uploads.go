// uploads.go — сервис квитанций о загрузках.
// Только чтение: квитанции создаёт оркестратор загрузки.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
	"github.com/bigkaa/godevedge/edge-module/internal/repository"
)

// UploadService — сервис просмотра квитанций о загрузках.
type UploadService struct {
	repo   repository.FileUploadRepository
	logger *slog.Logger
}

// NewUploadService создаёт сервис квитанций.
func NewUploadService(repo repository.FileUploadRepository, logger *slog.Logger) *UploadService {
	return &UploadService{
		repo:   repo,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// List возвращает все квитанции в порядке вставки.
func (s *UploadService) List(ctx context.Context) ([]*model.FileUpload, error) {
	uploads, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка квитанций: %w", err)
	}
	return uploads, nil
}
