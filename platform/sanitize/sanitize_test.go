package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Ana  Lopez", "Ana Lopez"},
		{"tags", "<b>Ana</b> <script>x</script>Lopez", "Ana xLopez"},
		{"encoded tags", "&lt;i&gt;Ana&lt;/i&gt;", "Ana"},
		{"newlines", "Casa\n\n en  venta ", "Casa en venta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextPtr(t *testing.T) {
	assert.Nil(t, TextPtr(nil))

	blank := "  <br> "
	assert.Nil(t, TextPtr(&blank))

	reason := " no  answer "
	got := TextPtr(&reason)
	if assert.NotNil(t, got) {
		assert.Equal(t, "no answer", *got)
	}
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", Email("  Ana@Example.COM "))
}
