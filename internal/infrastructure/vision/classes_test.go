package vision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadClasses(t *testing.T) {
	classes, err := LoadClasses("")
	require.NoError(t, err)
	require.Equal(t, DefaultClasses, classes)

	path := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("# chips\nRed Chip\n\n Blue Chip \n"), 0o644))
	classes, err = LoadClasses(path)
	require.NoError(t, err)
	require.Equal(t, []string{"Red Chip", "Blue Chip"}, classes)

	require.NoError(t, os.WriteFile(path, []byte("# nothing\n"), 0o644))
	_, err = LoadClasses(path)
	require.Error(t, err)

	_, err = LoadClasses(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestColorOf(t *testing.T) {
	require.Equal(t, LabelColors["Red Chip"], ColorOf("Red Chip"))
	require.Equal(t, FallbackColor, ColorOf("Gold Chip"))
}
