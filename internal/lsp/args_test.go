package lsp

import (
	"testing"

	"github.com/streekit/streekeeper/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildArgs_NothingEnabled(t *testing.T) {
	assert.Equal(t, []string{"lsp"}, BuildArgs(types.Settings{}))
}

func TestBuildArgs_AllOptions(t *testing.T) {
	s := types.Settings{
		SingleQuotes:      true,
		TrailingComma:     false,
		AdditionalPlugins: []string{"x", "x", "y"},
		PrintWidth:        100,
	}

	assert.Equal(t, []string{"lsp", "--plugins=single_quotes,x,y", "--print-width=100"}, BuildArgs(s))
}

func TestBuildArgs_Table(t *testing.T) {
	tests := []struct {
		name     string
		settings types.Settings
		want     []string
	}{
		{
			name:     "trailing comma only",
			settings: types.Settings{TrailingComma: true},
			want:     []string{"lsp", "--plugins=trailing_comma"},
		},
		{
			name:     "both builtin plugins",
			settings: types.Settings{SingleQuotes: true, TrailingComma: true},
			want:     []string{"lsp", "--plugins=single_quotes,trailing_comma"},
		},
		{
			name:     "additional repeats builtin",
			settings: types.Settings{SingleQuotes: true, AdditionalPlugins: []string{"single_quotes", "haml"}},
			want:     []string{"lsp", "--plugins=single_quotes,haml"},
		},
		{
			name:     "additional only",
			settings: types.Settings{AdditionalPlugins: []string{"haml", "rbs"}},
			want:     []string{"lsp", "--plugins=haml,rbs"},
		},
		{
			name:     "print width only",
			settings: types.Settings{PrintWidth: 80},
			want:     []string{"lsp", "--print-width=80"},
		},
		{
			name:     "zero print width omitted",
			settings: types.Settings{},
			want:     []string{"lsp"},
		},
		{
			name:     "negative print width omitted",
			settings: types.Settings{PrintWidth: -1},
			want:     []string{"lsp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildArgs(tt.settings))
		})
	}
}
