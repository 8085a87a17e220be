package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatedPath(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target string
		want   string
	}{
		{name: "no language suffix", input: "movies/show.srt", target: "pt-BR", want: "movies/show.pt-BR.srt"},
		{name: "two letter suffix", input: "show.en.srt", target: "pt-BR", want: "show.pt-BR.srt"},
		{name: "three letter suffix", input: "show.eng.vtt", target: "ja", want: "show.ja.vtt"},
		{name: "region suffix", input: "/a/b/show.en-US.srt", target: "es", want: "/a/b/show.es.srt"},
		{name: "long last segment kept", input: "season.final.srt", target: "ko", want: "season.final.ko.srt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslatedPath(tt.input, tt.target))
		})
	}
}

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()

	p, err := SafeJoin(base, "sub/file.srt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "sub", "file.srt"), p)

	_, err = SafeJoin(base, "../outside.srt")
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestListDirectoryAndSearch(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "show"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "show", "ep1.en.srt"), []byte("1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "show", "ep1.mkv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, ".hidden.srt"), []byte("1"), 0644))

	tree, err := BuildTree(base, "", 2)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.True(t, tree.Children[0].IsDir)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, "ep1.en.srt", tree.Children[0].Children[0].Name)

	found, err := Search(base, "EP1", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join("show", "ep1.en.srt"), found[0].Path)
}
