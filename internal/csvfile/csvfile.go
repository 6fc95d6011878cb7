// Пакет csvfile — разбор и формирование CSV-файлов устройств.
// Формат: заголовок id,model,description (порядок колонок произвольный,
// адресация по имени), одна запись устройства на строку.
//
// Разбор работает в режиме fail-fast: первая структурная проблема
// (отсутствующая колонка, неверное число полей, нарушение паттерна поля)
// прерывает разбор целиком — частичный список записей не возвращается.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
)

// Имена обязательных колонок заголовка.
const (
	columnID          = "id"
	columnModel       = "model"
	columnDescription = "description"
)

// MalformedError — структурная ошибка CSV-файла.
// Line — номер строки файла (1 — заголовок), 0 — проблема уровня файла.
type MalformedError struct {
	Line   int
	Reason string
}

// Error реализует интерфейс error.
func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("строка %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

// Parse разбирает CSV-содержимое в упорядоченный список устройств.
// Возвращает *MalformedError при первой структурной проблеме.
// Файл только с заголовком — корректный, возвращается пустой список.
func Parse(data []byte) ([]model.Device, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	// Заголовок обязателен
	header, err := reader.Read()
	if err == io.EOF {
		return nil, &MalformedError{Reason: "пустой файл: отсутствует заголовок"}
	}
	if err != nil {
		return nil, &MalformedError{Line: 1, Reason: "нечитаемый заголовок: " + err.Error()}
	}

	cols, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	devices := []model.Device{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			// encoding/csv сам контролирует число полей в строке
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &MalformedError{Line: parseErr.Line, Reason: parseErr.Err.Error()}
			}
			return nil, &MalformedError{Line: line, Reason: err.Error()}
		}

		device := model.Device{
			ID:          strings.TrimSpace(record[cols[columnID]]),
			Model:       strings.TrimSpace(record[cols[columnModel]]),
			Description: record[cols[columnDescription]],
		}
		if reason := device.Validate(); reason != "" {
			return nil, &MalformedError{Line: line, Reason: reason}
		}

		devices = append(devices, device)
	}

	return devices, nil
}

// headerIndex строит отображение имя колонки → позиция.
// Имена сравниваются без учёта регистра и окружающих пробелов.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{columnID, columnModel, columnDescription} {
		if _, ok := cols[required]; !ok {
			return nil, &MalformedError{
				Line:   1,
				Reason: fmt.Sprintf("отсутствует обязательная колонка %q", required),
			}
		}
	}
	return cols, nil
}

// Write записывает устройства в CSV с заголовком id,model,description.
// Используется экспортом списка устройств по модели.
func Write(w io.Writer, devices []model.Device) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{columnID, columnModel, columnDescription}); err != nil {
		return fmt.Errorf("запись заголовка CSV: %w", err)
	}

	for _, d := range devices {
		if err := writer.Write([]string{d.ID, d.Model, d.Description}); err != nil {
			return fmt.Errorf("запись устройства %s: %w", d.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
