package importer

import (
	"regexp"
	"strings"
)

// ParsedContact is the canonical shape one validated row produces. It is
// consumed immediately by the import run and never persisted as-is.
type ParsedContact struct {
	Name     string
	Email    string
	Phone    string
	Company  string
	Position string
	City     string
	State    string
	Notes    string
	Tags     []string
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Validator struct{}

// Validate maps one raw row into a ParsedContact in a single pass. Column
// resolution tolerates Portuguese header names next to the canonical
// English ones, since most customer spreadsheets carry either.
func (Validator) Validate(row Row) (*ParsedContact, error) {
	contact := &ParsedContact{
		Name:     pick(row, "name", "nome"),
		Email:    pick(row, "email"),
		Phone:    pick(row, "phone", "telefone"),
		Company:  pick(row, "company", "empresa"),
		Position: pick(row, "position", "cargo"),
		City:     pick(row, "city", "cidade"),
		State:    pick(row, "state", "estado"),
		Notes:    pick(row, "notes", "observacoes", "obs"),
	}

	if contact.Email != "" && !emailRegex.MatchString(contact.Email) {
		return nil, &ValidationError{Field: "email", Message: "Email inválido: " + contact.Email}
	}
	if contact.Name == "" && contact.Email == "" {
		return nil, &ValidationError{Message: "Pelo menos nome ou email deve ser fornecido"}
	}

	contact.Tags = SplitTags(row["tags"])
	return contact, nil
}

func pick(row Row, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(row[key]); value != "" {
			return value
		}
	}
	return ""
}

// SplitTags splits a free-text tag list on commas, trimming each piece and
// dropping empties. Order is preserved and duplicates are kept; the import
// run deduplicates across the whole file, not per row.
func SplitTags(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		tags = append(tags, trimmed)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// IsValidEmail reports whether value looks like local@domain.tld.
func IsValidEmail(value string) bool {
	return value != "" && emailRegex.MatchString(value)
}

var nonDigitRegex = regexp.MustCompile(`\D`)

// NormalizePhone strips everything that is not a digit.
func NormalizePhone(phone string) string {
	return nonDigitRegex.ReplaceAllString(phone, "")
}
