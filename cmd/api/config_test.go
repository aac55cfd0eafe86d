package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/botledger/pkg/envconf"
)

func lookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestAPIConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name: "postgres_with_dsn",
			env:  map[string]string{"PG_DSN": "postgres://u:p@localhost/db", "AUTH_SIGNING_KEY": "k"},
		},
		{
			name:    "postgres_without_dsn",
			env:     map[string]string{"AUTH_SIGNING_KEY": "k"},
			wantErr: true,
		},
		{
			name: "memory_without_dsn",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "AUTH_SIGNING_KEY": "k"},
		},
		{
			name:    "unknown_driver",
			env:     map[string]string{"STORAGE_DRIVER": "sqlite", "AUTH_SIGNING_KEY": "k"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := new(apiConfig)
			require.NoError(t, envconf.LoadFrom(cfg, lookup(tt.env)))

			err := cfg.validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidConfig)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, uint16(8080), cfg.Port)
			assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
			assert.Equal(t, "log", cfg.Notify.Driver)
		})
	}
}
