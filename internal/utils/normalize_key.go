package utils

import "strings"

// NormalizeKey приводит статусы, типы медиа и категории к единому виду:
// обрезает пробелы, нижний регистр, пробелы и подчёркивания заменяются дефисом.
func NormalizeKey(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ToLower(normalized)
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.Join(strings.Fields(normalized), "-")
	return normalized
}
