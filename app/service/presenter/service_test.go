package presenter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImageDir(t *testing.T, ids ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".jpg"), []byte("jpeg"), 0o644))
	}

	return dir
}

func TestPresentEmpty(t *testing.T) {
	result := NewService(t.TempDir()).Present(nil)

	assert.Equal(t, NoMatchText, result.Text)
	assert.Empty(t, result.Images)
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Rows)
}

func TestPresentListsMissingImages(t *testing.T) {
	dir := newImageDir(t, "C01", "C03")

	result := NewService(dir).Present([]string{"C01", "C07", "C03"})

	assert.Equal(t, "Cows based on your query: C01, C07, C03\nImage not found: C07", result.Text)
	assert.Equal(t, map[string]string{
		"C01": filepath.Join(dir, "C01.jpg"),
		"C03": filepath.Join(dir, "C03.jpg"),
	}, result.Images)
	assert.Equal(t, []string{"C07"}, result.Missing)
	assert.Equal(t, [][]string{{"C01", "C03"}}, result.Rows)
}

func TestPresentGroupsRowsOfFour(t *testing.T) {
	ids := []string{"C01", "C02", "C03", "C04", "C05", "C06"}
	dir := newImageDir(t, ids...)

	result := NewService(dir).Present(ids)

	assert.Equal(t, "Cows based on your query: C01, C02, C03, C04, C05, C06", result.Text)
	assert.Len(t, result.Images, 6)
	assert.Equal(t, [][]string{{"C01", "C02", "C03", "C04"}, {"C05", "C06"}}, result.Rows)
}

func TestImagePathRejectsTraversal(t *testing.T) {
	dir := newImageDir(t, "C01")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "C02.jpg"), 0o755))

	svc := NewService(dir)

	_, ok := svc.ImagePath("C01")
	assert.True(t, ok)

	for _, id := range []string{"", "../C01", "sub/C01", `..\C01`, "C02"} {
		_, ok := svc.ImagePath(id)
		assert.False(t, ok, id)
	}
}
