package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidate(t *testing.T) {
	var nilLogger *zap.Logger

	tests := []struct {
		name    string
		deps    []any
		wantErr bool
	}{
		{name: "all present", deps: []any{zap.NewNop(), 10, "topic"}},
		{name: "untyped nil", deps: []any{nil}, wantErr: true},
		{name: "typed nil pointer", deps: []any{nilLogger}, wantErr: true},
		{name: "zero int", deps: []any{zap.NewNop(), 0}, wantErr: true},
		{name: "empty string", deps: []any{""}, wantErr: true},
		{name: "no deps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("component", tt.deps...)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "component")
		})
	}
}
