// File: internal/infra/metrics/metrics.go
package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func outcome(err error, kind string) string {
	if err == nil {
		return "success"
	}
	return kind
}
