package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "reader_01", false},
		{"Min Length", "abc", false},
		{"Max Length", strings.Repeat("a", 32), false},
		{"Too Short", "ab", true},
		{"Too Long", strings.Repeat("a", 33), true},
		{"Uppercase", "Reader", true},
		{"Hyphen", "re-ader", true},
		{"Reserved", "admin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "reader", NormalizeUsername("  Reader "))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@example.com"))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Name <a@example.com>"))
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidatePassword("12345678"))
	assert.NoError(t, ValidatePassword("Ångström!"))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", MaxPasswordLength+1)))
}

func TestNormalizeTags(t *testing.T) {
	tags, err := NormalizeTags([]string{"Go", " go ", "", "web-dev"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web-dev"}, tags)

	_, err = NormalizeTags([]string{"no spaces"})
	assert.Error(t, err)

	many := make([]string, MaxTags+1)
	for i := range many {
		many[i] = "t" + strings.Repeat("x", i)
	}
	_, err = NormalizeTags(many)
	assert.Error(t, err)

	empty, err := NormalizeTags(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestValidateReason(t *testing.T) {
	assert.NoError(t, ValidateReason("spam"))
	assert.Error(t, ValidateReason("   "))
	assert.NoError(t, ValidateReason(strings.Repeat("r", MaxReasonLength)))
	assert.Error(t, ValidateReason(strings.Repeat("r", MaxReasonLength+1)))
}

func TestValidateThreadAndLinks(t *testing.T) {
	assert.NoError(t, ValidateThread("Title", "Body"))
	assert.Error(t, ValidateThread(" ", "Body"))
	assert.Error(t, ValidateThread("Title", ""))
	assert.Error(t, ValidateThread(strings.Repeat("t", MaxTitleLength+1), "Body"))

	assert.NoError(t, ValidateLink(""))
	assert.NoError(t, ValidateLink("https://github.com/someone"))
	assert.Error(t, ValidateLink("javascript:alert(1)"))
	assert.Error(t, ValidateLink("ftp://example.com"))

	assert.NoError(t, ValidateBio("hi"))
	assert.Error(t, ValidateBio(strings.Repeat("b", MaxBioLength+1)))
}
