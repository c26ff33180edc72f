package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoistSelectors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text",
			in:   "Hello {name}, you have {count, number} new",
			want: "Hello {name}, you have {count, number} new",
		},
		{
			name: "single plural",
			in:   "I have {count, plural, one{a dog} other{many dogs}}",
			want: "{count, plural, one{I have a dog} other{I have many dogs}}",
		},
		{
			name: "offset and suffix",
			in:   "{n, plural, offset:1 =0{none} other{# more}} left",
			want: "{n, plural, offset:1 =0{none left} other{# more left}}",
		},
		{
			name: "nested selectors",
			in:   "{a, select, x{X} other{O}} and {n, plural, one{# item} other{# items}}",
			want: "{a, select, x{{n, plural, one{X and # item} other{X and # items}}} " +
				"other{{n, plural, one{O and # item} other{O and # items}}}}",
		},
		{
			name: "quoted braces",
			in:   "It''s {n, plural, one{'{'one'}'} other{many}}",
			want: "{n, plural, one{It''s '{'one'}'} other{It''s many}}",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := HoistSelectors(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHoistSelectorsRejectsMalformedMessages(t *testing.T) {
	for _, in := range []string{
		"{n, plural, one{x}",
		"stray }",
		"{n, plural}",
		"{, number}",
		"{n, select, x}",
	} {
		_, err := HoistSelectors(in)
		assert.Error(t, err, in)
	}
}
