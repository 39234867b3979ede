package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jwalitptl/meditrack/pkg/errors"
)

// StatusError is the upstream's non-2xx answer. It is always wrapped in an
// AppError whose kind follows the status class.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Detail)
}

// problem matches the upstream error bodies: {"detail": "..."} or the
// validation form {"detail": [{"loc": [...], "msg": "..."}]}.
type problem struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldProblem struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

func statusError(status int, body []byte) error {
	detail, fields := parseProblem(body)
	cause := &StatusError{StatusCode: status, Detail: detail}

	switch {
	case status == http.StatusUnauthorized:
		return errors.Authentication(orDefault(detail, "session expired or invalid credentials"), cause)
	case status == http.StatusForbidden:
		return &errors.AppError{Kind: errors.KindForbidden, Message: orDefault(detail, "not permitted"), Err: cause}
	case status == http.StatusNotFound:
		return errors.NotFound("resource", cause)
	case status >= 400 && status < 500:
		return errors.Validation(orDefault(detail, "request rejected by patient service"), fields, cause)
	default:
		return errors.Fetch("patient service error", cause)
	}
}

func parseProblem(body []byte) (string, map[string]string) {
	var p problem
	if err := json.Unmarshal(body, &p); err != nil || len(p.Detail) == 0 {
		return "", nil
	}

	var msg string
	if err := json.Unmarshal(p.Detail, &msg); err == nil {
		return msg, nil
	}

	var list []fieldProblem
	if err := json.Unmarshal(p.Detail, &list); err != nil || len(list) == 0 {
		return "", nil
	}
	fields := make(map[string]string, len(list))
	for _, fp := range list {
		fields[fieldName(fp.Loc)] = fp.Msg
	}
	return "validation failed", fields
}

// fieldName joins a location path, dropping the leading "body" segment.
func fieldName(loc []interface{}) string {
	parts := make([]string, 0, len(loc))
	for i, l := range loc {
		s := fmt.Sprint(l)
		if i == 0 && s == "body" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
