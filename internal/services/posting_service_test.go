package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/postreader"
	"github.com/stretchr/testify/require"
)

func TestRetentionVerdict(t *testing.T) {
	const creative = "Buy our stuff, it is great"

	tests := []struct {
		name       string
		content    *postreader.Content
		readErr    error
		creative   string
		wantOK     bool
		wantReason string
	}{
		{
			name:     "intact post",
			content:  &postreader.Content{Text: creative},
			creative: creative,
			wantOK:   true,
		},
		{
			name:       "post deleted",
			readErr:    postreader.ErrNotFound,
			creative:   creative,
			wantReason: ReasonPostDeleted,
		},
		{
			name:       "read failure counts as violation",
			readErr:    errors.New("mtproto session dead"),
			creative:   creative,
			wantReason: "mtproto session dead",
		},
		{
			name:       "edit marker set",
			content:    &postreader.Content{Text: creative, Edited: true},
			creative:   creative,
			wantReason: ReasonPostEdited,
		},
		{
			name:       "text rewritten",
			content:    &postreader.Content{Text: "Totally different ad"},
			creative:   creative,
			wantReason: ReasonPostEdited,
		},
		{
			name:    "no creative on record skips text comparison",
			content: &postreader.Content{Text: "whatever is there"},
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := retentionVerdict(tt.content, tt.readErr, tt.creative)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestRetentionVerdictComparesPreviewLength(t *testing.T) {
	// Only the first 500 runes participate in the comparison, on both
	// sides: live reads return the full text and must not mismatch a
	// long creative just because of the window.
	long := strings.Repeat("ы", 700)

	ok, reason := retentionVerdict(&postreader.Content{Text: long}, nil, long)
	require.True(t, ok)
	require.Empty(t, reason)

	// A difference past the window is invisible.
	pastWindow := long[:len(long)-len("ы")] + "x"
	ok, reason = retentionVerdict(&postreader.Content{Text: pastWindow}, nil, long)
	require.True(t, ok)
	require.Empty(t, reason)

	// A change inside the window is still caught, whether the reader
	// returned full text or a pre-truncated preview.
	preview := string([]rune(long)[:retentionPreviewLimit])
	tweaked := preview[:len(preview)-len("ы")] + "x"
	for _, live := range []string{tweaked, tweaked + strings.Repeat("ы", 200)} {
		ok, reason = retentionVerdict(&postreader.Content{Text: live}, nil, long)
		require.False(t, ok)
		require.Equal(t, ReasonPostEdited, reason)
	}
}
