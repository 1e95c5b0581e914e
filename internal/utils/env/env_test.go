package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	tests := map[string]struct {
		specs  []string
		setEnv map[string]string
		expEnv map[string]string
		expErr bool
	}{
		"Empty specs": {
			specs:  nil,
			expEnv: map[string]string{},
		},
		"Key value pairs": {
			specs:  []string{"API_KEY=secret", "MODE=fast"},
			expEnv: map[string]string{"API_KEY": "secret", "MODE": "fast"},
		},
		"Empty value is allowed": {
			specs:  []string{"EMPTY="},
			expEnv: map[string]string{"EMPTY": ""},
		},
		"Value may contain equals signs": {
			specs:  []string{"OPTS=a=b=c"},
			expEnv: map[string]string{"OPTS": "a=b=c"},
		},
		"Bare key inherits from process environment": {
			specs:  []string{"NCREW_TEST_INHERITED"},
			setEnv: map[string]string{"NCREW_TEST_INHERITED": "from-parent"},
			expEnv: map[string]string{"NCREW_TEST_INHERITED": "from-parent"},
		},
		"Bare key not set fails": {
			specs:  []string{"NCREW_TEST_DEFINITELY_NOT_SET"},
			expErr: true,
		},
		"Empty spec fails": {
			specs:  []string{""},
			expErr: true,
		},
		"Invalid key fails": {
			specs:  []string{"1BAD=value"},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.setEnv {
				t.Setenv(k, v)
			}

			got, err := env.ParseSpecs(tt.specs)

			if tt.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expEnv, got)
		})
	}
}
