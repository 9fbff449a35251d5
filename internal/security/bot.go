package security

import (
	"strings"

	"github.com/mssola/useragent"
)

// HoneypotField is a form field hidden from people; bots tend to fill it
const HoneypotField = "website"

// HoneypotTripped reports whether a honeypot value was submitted
func HoneypotTripped(value string) bool {
	return strings.TrimSpace(value) != ""
}

// IsBotUserAgent reports whether the User-Agent identifies a crawler or script
func IsBotUserAgent(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return false
	}
	return useragent.New(ua).Bot()
}
