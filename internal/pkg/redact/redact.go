// redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Email оставляет первые две руны локальной части и домен целиком.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	r := []rune(local)
	if len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token оставляет только последние 6 символов для сопоставления записей лога.
func Token(tok string) string {
	if len(tok) <= 12 {
		return "[REDACTED_TOKEN]"
	}

	return "[REDACTED_TOKEN]…" + tok[len(tok)-6:]
}

func Password() string { return "[REDACTED_PASSWORD]" }
