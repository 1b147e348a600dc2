package client

import (
	"encoding/json"
	"errors"
)

// itemsEnvelope is the nested response shape:
//
//	{"data": {"items": [...], "meta": {"total": N}}, "links": {"next": "..."}}
type itemsEnvelope struct {
	Data *struct {
		Items *[]AuditLogEntry `json:"items"`
		Meta  *struct {
			Total *int `json:"total"`
		} `json:"meta"`
	} `json:"data"`
	Links *struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// flatEnvelope is the flat response shape:
//
//	{"logs": [...], "hasMore": true, "total": N}
type flatEnvelope struct {
	Logs     *[]AuditLogEntry `json:"logs"`
	HasMore  *bool            `json:"hasMore"`
	HasMore2 *bool            `json:"has_more"`
	Total    *int             `json:"total"`
}

var errShapeMismatch = errors.New("shape mismatch")

// decodePage normalizes a search response body into a Page. It tries the
// items envelope first, then the flat envelope; a body matching neither is
// reported as a FormatError carrying the raw body.
func decodePage(body []byte) (*Page, error) {
	page, errA := decodeItemsEnvelope(body)
	if errA == nil {
		return page, nil
	}
	page, errB := decodeFlatEnvelope(body)
	if errB == nil {
		return page, nil
	}

	// Report the decode error that got furthest; a plain mismatch on both
	// branches carries no extra detail.
	var cause error
	switch {
	case !errors.Is(errA, errShapeMismatch):
		cause = errA
	case !errors.Is(errB, errShapeMismatch):
		cause = errB
	}
	return nil, &FormatError{Body: string(body), Err: cause}
}

func decodeItemsEnvelope(body []byte) (*Page, error) {
	var env itemsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "data.items" {
			return nil, errShapeMismatch
		}
		return nil, err
	}
	if env.Data == nil || env.Data.Items == nil {
		return nil, errShapeMismatch
	}

	page := &Page{Entries: nonNil(*env.Data.Items)}
	if env.Links != nil && env.Links.Next != nil && *env.Links.Next != "" {
		page.HasMore = true
	}
	if env.Data.Meta != nil && env.Data.Meta.Total != nil {
		page.Total = *env.Data.Meta.Total
	}
	return page, nil
}

func decodeFlatEnvelope(body []byte) (*Page, error) {
	var env flatEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "logs" {
			return nil, errShapeMismatch
		}
		return nil, err
	}
	if env.Logs == nil {
		return nil, errShapeMismatch
	}

	page := &Page{Entries: nonNil(*env.Logs)}
	switch {
	case env.HasMore != nil:
		page.HasMore = *env.HasMore
	case env.HasMore2 != nil:
		page.HasMore = *env.HasMore2
	}
	if env.Total != nil {
		page.Total = *env.Total
	} else {
		page.Total = len(page.Entries)
	}
	return page, nil
}

func nonNil(entries []AuditLogEntry) []AuditLogEntry {
	if entries == nil {
		return []AuditLogEntry{}
	}
	return entries
}
