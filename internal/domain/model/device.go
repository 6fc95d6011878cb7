// Пакет model — доменные модели Edge Module.
package model

import "regexp"

// Паттерны валидации полей устройства.
// Совпадают с контрактом реестра устройств: serial number допускает
// латиницу, цифры, дефис и пробел; model — только латиницу и цифры.
var (
	serialNumberPattern = regexp.MustCompile(`^[A-Za-z0-9\- ]*$`)
	modelPattern        = regexp.MustCompile(`^[A-Za-z0-9]*$`)
)

// Device — запись устройства.
// Уникальность ID обеспечивает реестр устройств, не Edge Module.
type Device struct {
	// ID — серийный номер устройства
	ID string `json:"id"`
	// Model — модель устройства
	Model string `json:"model"`
	// Description — произвольное описание (может быть пустым)
	Description string `json:"description"`
}

// Validate проверяет поля устройства.
// Возвращает пустую строку, если всё корректно, иначе — описание проблемы.
func (d Device) Validate() string {
	if d.ID == "" {
		return "серийный номер (id) обязателен"
	}
	if !serialNumberPattern.MatchString(d.ID) {
		return "серийный номер (id) содержит недопустимые символы"
	}
	if d.Model == "" {
		return "модель (model) обязательна"
	}
	if !modelPattern.MatchString(d.Model) {
		return "модель (model) содержит недопустимые символы"
	}
	return ""
}
