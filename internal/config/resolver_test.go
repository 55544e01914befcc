package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		src     MapSource
		wantURL string
		wantKey string
	}{
		{
			name: "nothing configured",
			src:  MapSource{"HOME": "/root"},
		},
		{
			name:    "unpooled wins over pooled",
			src:     MapSource{"DATABASE_URL": "pooled", "DATABASE_URL_UNPOOLED": "direct"},
			wantURL: "direct",
			wantKey: "DATABASE_URL_UNPOOLED",
		},
		{
			name:    "blank values are skipped",
			src:     MapSource{"DATABASE_URL_UNPOOLED": "   ", "POSTGRES_URL": "pg"},
			wantURL: "pg",
			wantKey: "POSTGRES_URL",
		},
		{
			name:    "provider prefixed key",
			src:     MapSource{"POSTGRES_NEON_URL": "neon"},
			wantURL: "neon",
			wantKey: "POSTGRES_NEON_URL",
		},
		{
			name: "prisma and no-ssl keys are ignored",
			src:  MapSource{"POSTGRES_PRISMA_URL": "prisma", "POSTGRES_URL_NO_SSL": "nossl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveDatabaseURL(tt.src)
			assert.Equal(t, tt.wantURL, res.URL)
			assert.Equal(t, tt.wantKey, res.Key)
			assert.Equal(t, tt.wantURL != "", res.Configured())
		})
	}
}
