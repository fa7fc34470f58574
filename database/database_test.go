package database

import (
	"errors"
	"testing"

	"github.com/rpupo63/portfolio-projects-backend/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]string
		want    string
		wantErr error
	}{
		{
			name: "supabase",
			config: map[string]string{
				"DB_TYPE":              "supa",
				"SUPABASE_DB_HOST":     "db.example.supabase.co",
				"SUPABASE_DB_USER":     "postgres",
				"SUPABASE_DB_PASSWORD": "pw",
				"SUPABASE_DB_NAME":     "portfolio",
			},
			want: "host=db.example.supabase.co user=postgres password=pw dbname=portfolio port=5432 sslmode=require",
		},
		{
			name: "postgres url",
			config: map[string]string{
				"DB_TYPE":      "postgres",
				"DATABASE_URL": "postgres://user:pw@localhost:5432/portfolio?sslmode=disable",
			},
			want: "postgres://user:pw@localhost:5432/portfolio?sslmode=disable",
		},
		{
			name:   "defaults to postgres",
			config: map[string]string{"DATABASE_URL": "postgres://localhost/portfolio"},
			want:   "postgres://localhost/portfolio",
		},
		{
			name:    "postgres without url",
			config:  map[string]string{"DB_TYPE": "postgres"},
			wantErr: errs.ErrEnvironmentVariable,
		},
		{
			name:    "unsupported",
			config:  map[string]string{"DB_TYPE": "mongo"},
			wantErr: errs.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DSN(tt.config)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
