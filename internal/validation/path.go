package validation

import "fmt"

// ValidateLocale проверяет код локали
func ValidateLocale(locale string) error {
	if locale == "" {
		return fmt.Errorf("locale cannot be empty")
	}

	if !LocalePattern.MatchString(locale) {
		return fmt.Errorf("locale %q must look like en or en-US", locale)
	}

	return nil
}

// ValidateFieldID проверяет идентификатор поля
// Формат: латинская буква, затем буквы, цифры или _, не длиннее 64 символов
func ValidateFieldID(id string) error {
	if id == "" {
		return fmt.Errorf("field id cannot be empty")
	}

	if !FieldIDPattern.MatchString(id) {
		return fmt.Errorf("field id %q can only contain letters, numbers and underscores and must start with a letter", id)
	}

	return nil
}

// ValidateEntityID проверяет идентификатор сущности.
// Символы "!" и "/" запрещены: они разделяют ключ канала и путь REST.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id cannot be empty")
	}

	if !EntityIDPattern.MatchString(id) {
		return fmt.Errorf("entity id %q can only contain letters, numbers, '.', '_' and '-' (up to 64)", id)
	}

	return nil
}
