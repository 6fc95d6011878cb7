package model

import "time"

// FileUpload — квитанция о загрузке CSV-файла.
// Хранится в таблице file_uploads, ключ — имя файла.
// Создаётся ровно один раз после успешного разбора файла и никогда
// не обновляется. DeviceCount — число разобранных строк, а не число
// записей, принятых реестром.
type FileUpload struct {
	// FileName — имя загруженного файла (уникальный ключ)
	FileName string `json:"file_name"`
	// DeviceCount — количество разобранных устройств
	DeviceCount int `json:"device_count"`
	// UploadedAt — время загрузки (устанавливается один раз)
	UploadedAt time.Time `json:"uploaded_at"`
	// UploadedBy — идентификатор отправителя (опционально)
	UploadedBy string `json:"uploaded_by,omitempty"`
}
