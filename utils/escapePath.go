package utils

import "strings"

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`:`, `\:`,
)

// EscapePath turns a document key into a literal gjson/sjson path element.
func EscapePath(key string) string {
	return pathEscaper.Replace(key)
}
