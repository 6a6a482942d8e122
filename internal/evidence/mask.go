package evidence

import "strings"

// MaskPhone keeps the first three and last three digits visible and replaces
// the middle with asterisks. The mapping is one-way: the original cannot be
// recovered from the masked form, and masked input stays masked.
func MaskPhone(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if len(trimmed) <= 6 {
		return strings.Repeat("*", len(trimmed))
	}
	middle := len(trimmed) - 6
	return trimmed[:3] + strings.Repeat("*", middle) + trimmed[len(trimmed)-3:]
}

// MaskEmail keeps the first character of the local part and the full domain.
func MaskEmail(email string) string {
	trimmed := strings.TrimSpace(email)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return strings.Repeat("*", len(trimmed))
	}
	local, domain := trimmed[:at], trimmed[at:]
	if len(local) == 1 {
		return "*" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + domain
}

// MaskTarget masks a channel target according to its shape.
func MaskTarget(target string) string {
	if strings.Contains(target, "@") {
		return MaskEmail(target)
	}
	return MaskPhone(target)
}
