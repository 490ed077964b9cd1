package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ascii_long_local", in: "annabel@club.org", want: "an***@club.org"},
		{name: "ascii_local_len_2", in: "ab@club.org", want: "***@club.org"},
		{name: "no_at", in: "no-at-here", want: "***"},
		{name: "multiple_at", in: "a@b@c", want: "***"},
		{name: "plus_tag_domain_case", in: "abc+tag@CLUB.org", want: "ab***@CLUB.org"},
		{name: "empty", in: "", want: "***"},
		{name: "unicode_local", in: "юзер@клуб.рф", want: "юз***@клуб.рф"},
		{name: "unicode_short_local", in: "юз@клуб.рф", want: "***@клуб.рф"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Email(tt.in))
		})
	}
}

func TestToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[REDACTED_TOKEN]", Token(""))
	require.Equal(t, "[REDACTED_TOKEN]", Token("short.tok"))
	require.Equal(t, "[REDACTED_TOKEN]…abcdef", Token("eyJhbGciOi.payload.sig-abcdef"))
	require.Equal(t, "[REDACTED_PASSWORD]", Password())
}
