package helpers

import (
	"regexp"
	"strings"
)

var (
	markdownCodeBlockRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	markdownInlineRegex    = regexp.MustCompile("(\\*\\*\\*|\\*\\*|\\*|__|_|~~|\\|\\||`)")
	markdownQuoteRegex     = regexp.MustCompile("(?m)^>>?>?\\s?")
	markdownMaskedURLRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)]+)\)`)
)

// StripMarkdown removes discord markdown from $text, masked links are written as "text (url)"
func StripMarkdown(text string) string {
	text = markdownCodeBlockRegex.ReplaceAllString(text, "$1")
	text = markdownMaskedURLRegex.ReplaceAllString(text, "$1 ($2)")
	text = markdownQuoteRegex.ReplaceAllString(text, "")
	text = markdownInlineRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// EscapeMarkdown makes $text safe to embed in a markdown message
func EscapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"*", "\\*",
		"_", "\\_",
		"~", "\\~",
		"`", "\\`",
		"|", "\\|",
		">", "\\>",
	)
	return replacer.Replace(text)
}
