package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"international", "+1 650-253-0000", "", "+16502530000"},
		{"national with region", "(650) 253-0000", "us", "+16502530000"},
		{"blank", "   ", "", ""},
		{"unparseable kept", " not a phone ", "MX", "not a phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeE164(tt.input, tt.region))
		})
	}
}

