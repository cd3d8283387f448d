package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "whole number", input: "800", want: "800.0000"},
		{name: "scale four", input: "0.0001", want: "0.0001"},
		{name: "trailing zeros beyond scale", input: "1.230000", want: "1.2300"},
		{name: "zero rejected", input: "0", wantErr: true},
		{name: "negative rejected", input: "-5", wantErr: true},
		{name: "malformed rejected", input: "ten dollars", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "too many decimal places", input: "1.23456", wantErr: true},
		{name: "float notation", input: "100.50", want: "100.5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(AmountScale))
		})
	}
}
