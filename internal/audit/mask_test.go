package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		want       string
	}{
		{"typical token", "ghp_ABCDEFGHIJKLMNOP", "ghp_********MNOP"},
		{"exactly 8 chars", "abcdefgh", "abcd********efgh"},
		{"short fully masked", "abcde", "*****"},
		{"single char", "x", "*"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskCredential(tt.credential)
			assert.Equal(t, tt.want, got)
			if len(tt.credential) >= 8 && tt.credential != "" {
				assert.Equal(t, tt.credential[:4], got[:4])
				assert.Equal(t, tt.credential[len(tt.credential)-4:], got[len(got)-4:])
			}
		})
	}
}

func TestMaskCredentialNeverRevealsShortCredentials(t *testing.T) {
	for _, cred := range []string{"a", "ab", "abc", "abcd", "abcde", "abcdef", "abcdefg"} {
		masked := MaskCredential(cred)
		assert.NotContains(t, masked, cred[:1]+"", "masked form must reveal no characters")
		assert.Len(t, masked, len(cred))
	}
}
