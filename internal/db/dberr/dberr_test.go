package dberr

import (
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true},
		{"mysql wrapped", fmt.Errorf("create: %w", &mysql.MySQLError{Number: 1062}), true},
		{"mysql other", &mysql.MySQLError{Number: 1452}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: release_notes.version"), true},
		{"other", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicate(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(gorm.ErrRecordNotFound))
	assert.True(t, IsNotFound(errors.Wrap(gorm.ErrRecordNotFound, "bcr")))
	assert.False(t, IsNotFound(errors.New("boom")))
}
