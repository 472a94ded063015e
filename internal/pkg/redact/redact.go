// redact — маскирование чувствительных значений в логах.
// Токены и пароли не логируются никогда; email маскируется частично,
// чтобы записи оставались пригодными для разбора инцидентов.
package redact

import "strings"

// Email маскирует локальную часть адреса: "alice@example.com" -> "al***@example.com".
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
