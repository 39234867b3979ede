package listview

import (
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/errors"
)

// Source names where displayed rows came from.
type Source string

const (
	SourceNone        Source = ""
	SourceRemote      Source = "remote"
	SourcePlaceholder Source = "placeholder"
)

// Notice is a dismissable message shown above the table.
type Notice struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Decision is what the table shows for one completed fetch.
type Decision struct {
	Rows       []model.Patient
	Total      int
	Source     Source
	Notice     *Notice
	EndReached bool
	// FallbackReason is "error" or "empty" when the placeholder is used.
	FallbackReason string
}

const (
	noticeLoadFailed = "Failed to load patients. Showing sample data."
	noticeSignedOut  = "Your session has expired. Please sign in again."
)

// Decide picks between the remote page and the placeholder dataset.
//
// A failed fetch shows the placeholder with a notice. An empty first page
// with no search means nothing could be listed and also shows the
// placeholder, without a notice. An empty search result or an empty later
// page is a real answer: it is shown empty and marks the end of the list.
func Decide(params model.ListParams, page *model.PatientPage, err error) Decision {
	if err != nil {
		notice := &Notice{Message: noticeLoadFailed, Retryable: true}
		if errors.IsAuthentication(err) {
			notice = &Notice{Message: noticeSignedOut, Retryable: false}
		}
		rows := Placeholder()
		return Decision{
			Rows:           rows,
			Total:          len(rows),
			Source:         SourcePlaceholder,
			Notice:         notice,
			FallbackReason: "error",
		}
	}

	if page == nil || len(page.Items) == 0 {
		if params.Search == "" && params.Skip == 0 {
			rows := Placeholder()
			return Decision{
				Rows:           rows,
				Total:          len(rows),
				Source:         SourcePlaceholder,
				FallbackReason: "empty",
			}
		}
		total := 0
		if page != nil {
			total = page.Total
		}
		return Decision{
			Rows:       []model.Patient{},
			Total:      total,
			Source:     SourceRemote,
			EndReached: true,
		}
	}

	return Decision{
		Rows:   page.Items,
		Total:  page.Total,
		Source: SourceRemote,
	}
}
