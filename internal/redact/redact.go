package redact

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Email masks the local part of an address, keeping its first character and
// the domain, e.g. "a***@example.com".
func Email(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		if addr == "" {
			return ""
		}
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// Text masks every email address found in free text, such as provider error
// messages that echo the submitted address back.
func Text(input string) string {
	return emailPattern.ReplaceAllStringFunc(input, Email)
}
