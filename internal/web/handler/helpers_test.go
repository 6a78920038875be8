package handler

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		name              string
		page, size        int
		total             int64
		wantPage, wantMax int
		prev, next        bool
	}{
		{"empty", 1, 25, 0, 1, 1, false, false},
		{"middle", 2, 10, 35, 2, 4, true, true},
		{"clamped high", 9, 10, 35, 4, 4, true, false},
		{"clamped low", -3, 10, 35, 1, 4, false, true},
		{"default size", 1, 0, 30, 1, 2, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(tt.page, tt.size, tt.total)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantMax, p.TotalPages)
			assert.Equal(t, tt.prev, p.HasPrev)
			assert.Equal(t, tt.next, p.HasNext)
		})
	}
}

func TestValidationMessages(t *testing.T) {
	type form struct {
		FullName string `validate:"required,max=5"`
		Email    string `validate:"required,email"`
		Source   string `validate:"oneof=Internal External"`
	}

	err := validator.New().Struct(form{FullName: "too long name", Email: "x", Source: "y"})
	require.Error(t, err)

	assert.Equal(t, []string{
		"Full name must be 5 characters or fewer",
		"Email must be a valid email address",
		"Source must be one of: Internal, External",
	}, ValidationMessages(err))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2025-09-01")
	require.NoError(t, err)
	assert.Equal(t, 9, int(d.Month()))

	_, err = ParseDate("01/09/2025")
	require.Error(t, err)
}
