package vfs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCd_AbsoluteAndRelative(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("documents"))
	require.True(t, fs.Mkdir("documents/invoices"))

	require.True(t, fs.Cd("/documents"))
	assert.Equal(t, "/documents", fs.Pwd())

	require.True(t, fs.Cd("invoices"))
	assert.Equal(t, "/documents/invoices", fs.Pwd())
}

func TestCd_DotDotFromRootIsNoOp(t *testing.T) {
	fs := New()
	require.True(t, fs.Cd(".."))
	assert.Equal(t, "/", fs.Pwd())
}

func TestCd_InvalidPathPreservesCwd(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("documents"))
	require.True(t, fs.Cd("documents"))
	ok := fs.Cd("nope")
	assert.False(t, ok)
	assert.Equal(t, "/documents", fs.Pwd())
}

// cd "a/../b" from X must equal cd "b" from X, whenever both succeed.
func TestCd_ParentTraversalEquivalence(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("a"))
	require.True(t, fs.Mkdir("b"))

	fs1 := *fs
	fs1.CurrentPath = append([]string(nil), fs.CurrentPath...)
	require.True(t, fs1.Cd("a/../b"))

	fs2 := *fs
	fs2.CurrentPath = append([]string(nil), fs.CurrentPath...)
	require.True(t, fs2.Cd("b"))

	assert.Equal(t, fs2.Pwd(), fs1.Pwd())
}

// ls output is lexicographically sorted, dirs then files.
func TestLs_SortedDirsThenFiles(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("zeta"))
	require.True(t, fs.Mkdir("alpha"))
	require.True(t, fs.AddDecoyFile("", "banana.txt", "/seed/banana.txt", 10, "Jan 1 00:00"))
	require.True(t, fs.AddDecoyFile("", "apple.txt", "/seed/apple.txt", 5, "Jan 1 00:00"))

	out, ok := fs.Ls("")
	require.True(t, ok)
	assert.Equal(t, "alpha\r\nzeta\r\napple.txt\r\nbanana.txt", out)
}

func TestLs_EmptyDirectoryIsEmptyString(t *testing.T) {
	fs := New()
	out, ok := fs.Ls("")
	require.True(t, ok)
	assert.Equal(t, "", out)
}

// rmdir succeeds only when the target has zero children and zero files.
func TestRmdir_NonEmptyFails(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("documents"))
	require.True(t, fs.AddDecoyFile("documents", "f.txt", "/seed/f.txt", 1, "Jan 1 00:00"))
	assert.False(t, fs.Rmdir("documents"))

	empty := New()
	require.True(t, empty.Mkdir("documents"))
	assert.True(t, empty.Rmdir("documents"))
}

func TestMkdir_NameCollisionFails(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("documents"))
	assert.False(t, fs.Mkdir("documents"))
}

func TestRm_AbsentIsNoOpFail(t *testing.T) {
	fs := New()
	assert.False(t, fs.Rm("missing.txt"))
}

// After an upload is recorded, ls(p) contains it and its size is
// retrievable (hash lives in dataprovider's UploadedFile row, exercised in
// that package's tests).
func TestAddUploadedFile_AppearsInLs(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("docs"))
	id := uint(42)
	require.True(t, fs.AddUploadedFile("docs", "readme", id, 6))

	out, ok := fs.Ls("docs")
	require.True(t, ok)
	assert.Equal(t, "readme", out)

	f, ok := fs.FindFile("docs/readme")
	require.True(t, ok)
	assert.Equal(t, int64(6), f.Size)
	require.NotNil(t, f.FileID)
	assert.Equal(t, id, *f.FileID)
	assert.Nil(t, f.DefaultFile)
}

func TestLsLongA_PrependsDotEntries(t *testing.T) {
	fs := New()
	require.True(t, fs.Mkdir("documents"))
	out, ok := fs.LsLongA(5)
	require.True(t, ok)
	assert.Contains(t, out, "Mar 16 21:23 .")
	assert.Contains(t, out, "Mar 13 19:59 ..")
	assert.Contains(t, out, "documents")
}

func TestBuildDefault_SkeletonAndDistribution(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	seeds := make([]SeedFile, 15)
	for i := range seeds {
		seeds[i] = SeedFile{Name: "file" + string(rune('a'+i)), Size: 100, PhysicalPath: "/seed/x"}
	}
	fs := BuildDefault(r, seeds)

	_, ok := fs.Root.Children["pictures"]
	assert.True(t, ok)
	docs, ok := fs.Root.Children["documents"]
	require.True(t, ok)
	_, ok = docs.Children["invoices"]
	assert.True(t, ok)
	_, ok = docs.Children["private"]
	assert.True(t, ok)

	total := len(fs.Root.Children["pictures"].Files) +
		len(docs.Files) +
		len(docs.Children["invoices"].Files) +
		len(docs.Children["private"].Files)
	assert.Equal(t, 15, total)
}
