package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	end := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -30)

	tests := []struct {
		name   string
		params QueryParams
		want   string
	}{
		{
			name:   "window only",
			params: QueryParams{Start: start, End: end},
			want:   "in:sent after:2026/09/16 before:2026/10/17",
		},
		{
			name:   "keywords",
			params: QueryParams{Start: start, End: end, Keywords: "interview, follow up,,"},
			want:   `in:sent after:2026/09/16 before:2026/10/17 ("interview" OR "follow up")`,
		},
		{
			name:   "exclude automated",
			params: QueryParams{Start: start, End: end, Keywords: "proposal", ExcludeAutomated: true},
			want: `in:sent after:2026/09/16 before:2026/10/17 ("proposal") ` +
				`-"no-reply" -"noreply" -"do not reply" -"automated" -"auto-generated"`,
		},
		{
			name:   "quotes stripped from keywords",
			params: QueryParams{Start: start, End: end, Keywords: `say "hi"`},
			want:   `in:sent after:2026/09/16 before:2026/10/17 ("say hi")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.params))
		})
	}
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitKeywords(" a, ,b c ,"))
	assert.Empty(t, SplitKeywords(""))
}
