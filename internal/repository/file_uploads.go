package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
)

// FileUploadRepository — реестр квитанций о загрузках CSV.
type FileUploadRepository interface {
	// Create создаёт квитанцию. Возвращает ErrConflict, если квитанция
	// с таким именем файла уже есть. Проверка и вставка атомарны —
	// уникальность обеспечивает ограничение таблицы, не отдельный SELECT.
	Create(ctx context.Context, upload *model.FileUpload) error
	// List возвращает все квитанции в порядке вставки.
	List(ctx context.Context) ([]*model.FileUpload, error)
}

// fileUploadRepo — реализация FileUploadRepository.
type fileUploadRepo struct {
	db DBTX
}

// NewFileUploadRepository создаёт репозиторий квитанций.
func NewFileUploadRepository(db DBTX) FileUploadRepository {
	return &fileUploadRepo{db: db}
}

func (r *fileUploadRepo) Create(ctx context.Context, upload *model.FileUpload) error {
	query := `
		INSERT INTO file_uploads (file_name, device_count, uploaded_at, uploaded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING uploaded_at`

	err := r.db.QueryRow(ctx, query,
		upload.FileName, upload.DeviceCount, upload.UploadedAt, upload.UploadedBy,
	).Scan(&upload.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %q уже загружался", ErrConflict, upload.FileName)
		}
		return fmt.Errorf("ошибка создания квитанции: %w", err)
	}
	return nil
}

func (r *fileUploadRepo) List(ctx context.Context) ([]*model.FileUpload, error) {
	query := `
		SELECT file_name, device_count, uploaded_at, uploaded_by
		FROM file_uploads
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка квитанций: %w", err)
	}
	defer rows.Close()

	var result []*model.FileUpload
	for rows.Next() {
		u := &model.FileUpload{}
		if err := rows.Scan(&u.FileName, &u.DeviceCount, &u.UploadedAt, &u.UploadedBy); err != nil {
			return nil, fmt.Errorf("ошибка сканирования квитанции: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
