package service

import (
	"strings"

	"github.com/mssola/useragent"
)

// deviceDetails extracts evidence fields from a User-Agent string. The raw
// string stays on the consent row; the parsed form goes into the evidence
// record so auditors do not have to re-parse it later.
func deviceDetails(userAgentString string) map[string]any {
	details := map[string]any{}
	if userAgentString == "" {
		return details
	}

	ua := useragent.New(userAgentString)
	browser, version := ua.Browser()
	os := ua.OS()

	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}
	if ua.Bot() {
		platform = "bot"
	}

	if browser != "" {
		details["browser"] = browser
	}
	if version != "" {
		details["browserVersion"] = version
	}
	if os != "" {
		details["os"] = os
	}
	details["platform"] = platform
	details["device"] = displayName(browser, os)
	return details
}

// displayName renders "Browser on OS" for human-facing evidence views.
func displayName(browser, os string) string {
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
