// Package commitmsg renders commit-message templates against a fixed
// instant.
package commitmsg

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTemplate is the commit message used when none is configured.
const DefaultTemplate = "vault backup: {{datetime}}"

// Render substitutes the supported tokens against at. Unknown tokens and
// all other text pass through untouched.
//
//	{{date}}      2006-01-02
//	{{time}}      15:04:05
//	{{datetime}}  2006-01-02 15:04:05
//	{{timestamp}} seconds since the Unix epoch
//	{{isoDate}}   RFC 3339
func Render(template string, at time.Time) string {
	r := strings.NewReplacer(
		"{{date}}", at.Format("2006-01-02"),
		"{{time}}", at.Format("15:04:05"),
		"{{datetime}}", at.Format("2006-01-02 15:04:05"),
		"{{timestamp}}", strconv.FormatInt(at.Unix(), 10),
		"{{isoDate}}", at.Format(time.RFC3339),
	)
	return r.Replace(template)
}
