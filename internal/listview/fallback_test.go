package listview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/errors"
)

func TestDecide(t *testing.T) {
	first := model.ListParams{Skip: 0, Limit: 10}
	later := model.ListParams{Skip: 10, Limit: 10}
	search := model.ListParams{Search: "zed", Skip: 0, Limit: 10}
	live := &model.PatientPage{Items: patients("1", "2", "3"), Total: 3}
	empty := &model.PatientPage{Items: []model.Patient{}, Total: 0}

	tests := []struct {
		name       string
		params     model.ListParams
		page       *model.PatientPage
		err        error
		source     Source
		rows       int
		notice     bool
		retryable  bool
		endReached bool
		reason     string
	}{
		{name: "live page", params: first, page: live, source: SourceRemote, rows: 3},
		{name: "fetch error", params: later, err: errors.Fetch("x", nil), source: SourcePlaceholder, rows: 2, notice: true, retryable: true, reason: "error"},
		{name: "auth error", params: first, err: errors.Authentication("x", nil), source: SourcePlaceholder, rows: 2, notice: true, reason: "error"},
		{name: "empty first page", params: first, page: empty, source: SourcePlaceholder, rows: 2, reason: "empty"},
		{name: "nil first page", params: first, source: SourcePlaceholder, rows: 2, reason: "empty"},
		{name: "empty later page", params: later, page: empty, source: SourceRemote, rows: 0, endReached: true},
		{name: "empty search", params: search, page: empty, source: SourceRemote, rows: 0, endReached: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.params, tt.page, tt.err)
			assert.Equal(t, tt.source, d.Source)
			assert.Len(t, d.Rows, tt.rows)
			assert.NotNil(t, d.Rows)
			assert.Equal(t, tt.endReached, d.EndReached)
			assert.Equal(t, tt.reason, d.FallbackReason)
			if tt.notice {
				if assert.NotNil(t, d.Notice) {
					assert.Equal(t, tt.retryable, d.Notice.Retryable)
				}
			} else {
				assert.Nil(t, d.Notice)
			}
		})
	}
}

func TestPlaceholderIsFresh(t *testing.T) {
	a := Placeholder()
	a[0].PersonalInfo.FirstName = "changed"
	assert.Equal(t, "John", Placeholder()[0].PersonalInfo.FirstName)
}
