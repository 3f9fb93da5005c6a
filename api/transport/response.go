package transport

import (
	"encoding/json"

	"github.com/fastygo/planner/domain"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every API response, successful or not.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// ListMeta describes the window a calendar listing covers.
type ListMeta struct {
	From   *domain.Date        `json:"from,omitempty"`
	To     *domain.Date        `json:"to,omitempty"`
	Status domain.UpdateStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Count  int                 `json:"count"`
}

// AgendaMeta names the day an agenda was built for.
type AgendaMeta struct {
	Date  domain.Date `json:"date"`
	Count int         `json:"count"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: StatusSuccess,
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: StatusError,
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// NewListMeta drops zero dates so open-ended ranges render without bounds.
func NewListMeta(from, to domain.Date, status domain.UpdateStatus, limit, offset, count int) ListMeta {
	meta := ListMeta{Status: status, Limit: limit, Offset: offset, Count: count}
	if !from.IsZero() {
		meta.From = &from
	}
	if !to.IsZero() {
		meta.To = &to
	}
	return meta
}

// String is used when logging envelopes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
