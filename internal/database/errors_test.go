package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"ms-attendance/internal/models"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound error
		want     error
	}{
		{"nil", nil, models.ErrEventNotFound, nil},
		{"no rows", sql.ErrNoRows, models.ErrEventNotFound, models.ErrEventNotFound},
		{"wrapped no rows", fmt.Errorf("select: %w", sql.ErrNoRows), models.ErrItemNotFound, models.ErrItemNotFound},
		{"serialization", &pq.Error{Code: "40001"}, nil, models.ErrVersionConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, nil, models.ErrVersionConflict},
		{"unique", &pq.Error{Code: "23505"}, nil, models.ErrVersionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.err, tt.notFound)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestTranslateKeepsOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	assert.Equal(t, boom, Translate(boom, models.ErrEventNotFound))

	fk := &pq.Error{Code: "23503"}
	assert.False(t, IsConflict(fk))
	assert.Equal(t, error(fk), Translate(fk, nil))
}
