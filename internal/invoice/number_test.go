package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	at := time.Date(2026, time.March, 7, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		format string
		seq    int
		want   string
	}{
		{"default format", "INV-{YYYY}{MM}{DD}-{seq}", 42, "INV-20260307-42"},
		{"no placeholders", "TICKET", 9, "TICKET"},
		{"seq only", "{seq}", 1, "1"},
		{"repeated placeholder", "{YYYY}/{YYYY}-{seq}", 3, "2026/2026-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.format, tt.seq, at))
		})
	}
}
