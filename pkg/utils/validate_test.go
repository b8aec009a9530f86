package utils

import (
	"testing"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct_CategoryColor(t *testing.T) {
	cases := []struct {
		color string
		ok    bool
	}{
		{"#ABCDEF", true},
		{"#000000", true},
		{"#abc", false},
		{"#abcd", false},
		{"#abcdef12", false},
		{"abcdef", false},
		{"#gggggg", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.color, func(t *testing.T) {
			err := ValidateStruct(models.CreateCategoryRequest{Name: "Research", Color: tc.color})
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Details, "color")
		})
	}
}

func TestValidateStruct_ReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(models.CreateCategoryRequest{Color: "#abcdef"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}
