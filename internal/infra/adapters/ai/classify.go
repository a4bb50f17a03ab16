package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	derror "autoshorts/internal/error"
)

const (
	statusResourceExhausted = "RESOURCE_EXHAUSTED"
	// codeResourceExhausted is the google.rpc.Code carried by failed
	// long-running operations.
	codeResourceExhausted = 8
)

// classify tags an SDK failure so the rotation executor can tell quota
// exhaustion apart from every other rejection. Context errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if code, status, ok := apiErrorOf(err); ok {
		if code == http.StatusTooManyRequests || strings.EqualFold(status, statusResourceExhausted) {
			return derror.Quota(op, code, err)
		}
		return derror.Rejected(op, code, err)
	}
	return derror.Rejected(op, 0, err)
}

func apiErrorOf(err error) (int, string, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, v.Status, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, p.Status, true
	}
	return 0, "", false
}

// classifyStatus tags a plain HTTP status from a direct download.
func classifyStatus(op string, status int, err error) error {
	if status == http.StatusTooManyRequests {
		return derror.Quota(op, status, err)
	}
	return derror.Rejected(op, status, err)
}

// classifyOperation tags the error object of a finished long-running
// operation. It carries an rpc code and status instead of an HTTP status.
func classifyOperation(op string, fields map[string]any) error {
	err := fmt.Errorf("render failed: %v", fields)
	status, _ := fields["status"].(string)
	if strings.EqualFold(status, statusResourceExhausted) || rpcCode(fields["code"]) == codeResourceExhausted {
		return derror.Quota(op, http.StatusTooManyRequests, err)
	}
	return derror.Rejected(op, 0, err)
}

// rpcCode reads the code as decoded from JSON or set by hand.
func rpcCode(v any) int {
	switch c := v.(type) {
	case int:
		return c
	case int32:
		return int(c)
	case int64:
		return int(c)
	case float64:
		return int(c)
	}
	return -1
}
