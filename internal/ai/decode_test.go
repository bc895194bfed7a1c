package ai

import (
	"testing"

	"github.com/robalyx/guardian/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"flagged":false}`, `{"flagged":false}`},
		{"json fence", "```json\n{\"flagged\":true}\n```", `{"flagged":true}`},
		{"bare fence", "```\n{\"flagged\":true}\n```", `{"flagged":true}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, stripCodeFences(tt.input))
		})
	}
}

func TestDecodeVerdict(t *testing.T) {
	t.Parallel()

	t.Run("flagged with reason", func(t *testing.T) {
		t.Parallel()

		v, err := decodeVerdict("```json\n{\"flagged\": true, \"reason\": \"Hate speech\"}\n```")
		require.NoError(t, err)
		assert.True(t, v.Flagged)
		assert.Equal(t, "Hate speech", v.Reason)
	})

	t.Run("none reason is empty", func(t *testing.T) {
		t.Parallel()

		v, err := decodeVerdict(`{"flagged": false, "reason": "None"}`)
		require.NoError(t, err)
		assert.False(t, v.Flagged)
		assert.Empty(t, v.Reason)
	})

	t.Run("unflagged keeps backend reason", func(t *testing.T) {
		t.Parallel()

		v, err := decodeVerdict("```json\n{\"flagged\": false, \"reason\": \"Friendly greeting, nothing harmful\"}\n```")
		require.NoError(t, err)
		assert.False(t, v.Flagged)
		assert.Equal(t, "Friendly greeting, nothing harmful", v.Reason)
	})

	t.Run("missing flagged", func(t *testing.T) {
		t.Parallel()

		_, err := decodeVerdict(`{"reason": "Hate speech"}`)
		require.ErrorIs(t, err, moderation.ErrBackendFormat)
	})

	t.Run("not json", func(t *testing.T) {
		t.Parallel()

		_, err := decodeVerdict("I cannot help with that.")
		require.ErrorIs(t, err, moderation.ErrBackendFormat)
	})
}

func TestDecodeImageVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantFlagged bool
		wantErr     error
	}{
		{"verdict contract", `{"flagged": true, "reason": "Nudity"}`, true, nil},
		{"nsfw above threshold", `[{"label":"nsfw","score":0.93},{"label":"normal","score":0.07}]`, true, nil},
		{"nsfw below threshold", `[{"label":"normal","score":0.8},{"label":"nsfw","score":0.2}]`, false, nil},
		{"nested labels", `[[{"label":"nsfw","score":0.7}]]`, true, nil},
		{"empty list", `[]`, false, moderation.ErrBackendFormat},
		{"empty body", ``, false, moderation.ErrBackendFormat},
		{"garbage", `<html>`, false, moderation.ErrBackendFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := decodeImageVerdict([]byte(tt.body), 0.5)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlagged, v.Flagged)
		})
	}
}
