package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yami-59/network-ops-demo/internal/model"
)

func TestSiteListAcceptsArrayOrString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want model.SiteList
	}{
		{"array", `["SITE_PARIS_001","SITE_PARIS_002"]`, model.SiteList{"SITE_PARIS_001", "SITE_PARIS_002"}},
		{"comma string", `"SITE_PARIS_001,SITE_PARIS_002"`, model.SiteList{"SITE_PARIS_001", "SITE_PARIS_002"}},
		{"blank item kept", `"SITE_PARIS_001,,SITE_PARIS_002"`, model.SiteList{"SITE_PARIS_001", "", "SITE_PARIS_002"}},
		{"empty string", `""`, nil},
		{"empty array", `[]`, model.SiteList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got model.SiteList
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSiteListRejectsOtherShapes(t *testing.T) {
	t.Parallel()
	for _, in := range []string{`42`, `{"a":1}`, `[1,2]`} {
		var got model.SiteList
		err := json.Unmarshal([]byte(in), &got)
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), "sites")
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	st, ok := model.ParseStatus(" planned ")
	assert.True(t, ok)
	assert.Equal(t, model.StatusPlanned, st)
	_, ok = model.ParseStatus("DONE")
	assert.False(t, ok)
	assert.False(t, model.Status("planned").Valid())

	p, ok := model.ParsePriority("HIGH")
	assert.True(t, ok)
	assert.Equal(t, model.PriorityHigh, p)
	_, ok = model.ParsePriority("urgent")
	assert.False(t, ok)

	d, ok := model.ParseDepartment("PILOTAGE")
	assert.True(t, ok)
	assert.Equal(t, model.DepartmentPilotage, d)
	_, ok = model.ParseDepartment("Finance")
	assert.False(t, ok)
}

func TestValidationBuilderCollectsEveryField(t *testing.T) {
	t.Parallel()
	var vb model.ValidationBuilder
	vb.Add(true, "feature", "unused").
		Add(false, "parameter", "not allowed for feature").
		Addf("sites", "at most %d sites", model.MaxSites)

	err := vb.Build()
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.True(t, verr.Has("parameter"))
	assert.True(t, verr.Has("sites"))
	assert.False(t, verr.Has("feature"))
	assert.Contains(t, err.Error(), "at most 500 sites")

	assert.NoError(t, (&model.ValidationBuilder{}).Build())
}

func TestTypedErrorsUnwrap(t *testing.T) {
	t.Parallel()
	nf := &model.NotFoundError{OpID: "OP-2026-0042"}
	assert.ErrorIs(t, nf, model.ErrNotFound)
	assert.Contains(t, nf.Error(), "OP-2026-0042")

	cause := errors.New("disk full")
	se := &model.StorageError{Op: "insert", Err: cause}
	assert.ErrorIs(t, se, model.ErrStorage)
	assert.ErrorIs(t, se, cause)
	assert.Equal(t, "storage: insert: disk full", se.Error())
}
