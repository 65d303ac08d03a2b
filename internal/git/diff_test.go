package git

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/patch"
)

var statusRe = regexp.MustCompile(`status:.*`)

const multiFileDiff = `diff --git a/_adr/12/index.adoc b/_adr/12/index.adoc
index 1111111..2222222 100644
--- a/_adr/12/index.adoc
+++ b/_adr/12/index.adoc
@@ -1,4 +1,4 @@
 ---
 num: 12
-status: "Draft"
+status: "Accepted"
 ---
diff --git a/notes.txt b/notes.txt
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/notes.txt
@@ -0,0 +1 @@
+no trailing newline
\ No newline at end of file
diff --git a/old.md b/new.md
similarity index 100%
rename from old.md
rename to new.md
`

func TestParseDiff(t *testing.T) {
	files, err := ParseDiff(multiFileDiff)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "_adr/12/index.adoc", files[0].Path)
	assert.Equal(t, forge.FileModified, files[0].Status)
	assert.Equal(t, "@@ -1,4 +1,4 @@\n ---\n num: 12\n-status: \"Draft\"\n+status: \"Accepted\"\n ---", files[0].Patch)

	assert.Equal(t, "notes.txt", files[1].Path)
	assert.Equal(t, forge.FileAdded, files[1].Status)

	assert.Equal(t, "new.md", files[2].Path)
	assert.Equal(t, "old.md", files[2].PreviousPath)
	assert.Equal(t, forge.FileRenamed, files[2].Status)
	assert.Empty(t, files[2].Patch)
}

func TestParseDiff_PatchesParse(t *testing.T) {
	files, err := ParseDiff(multiFileDiff)
	require.NoError(t, err)

	fp, err := patch.Parse(files[0].Patch)
	require.NoError(t, err)
	m, ok := fp.First(statusRe, patch.Add)
	require.True(t, ok)
	assert.Equal(t, 4, m.Position)

	fp, err = patch.Parse(files[1].Patch)
	require.NoError(t, err)
	require.Len(t, fp.Hunks, 1)
	require.Len(t, fp.Hunks[0].Lines, 1)
	assert.True(t, fp.Hunks[0].Lines[0].NoNewline)
}

func TestParseDiff_Empty(t *testing.T) {
	files, err := ParseDiff("")
	require.NoError(t, err)
	assert.Empty(t, files)
}
