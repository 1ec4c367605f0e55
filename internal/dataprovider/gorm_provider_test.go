package dataprovider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) Provider {
	t.Helper()
	p, err := OpenSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	return p
}

func TestCreateAndFindAttacker(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.FindAttackerByIP("1.2.3.4")
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := p.CreateAttacker("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.LoginCount)

	found, err := p.FindAttackerByIP("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestIncrementLoginCount(t *testing.T) {
	p := newTestProvider(t)
	a, err := p.CreateAttacker("5.5.5.5")
	require.NoError(t, err)

	require.NoError(t, p.IncrementLoginCount(a.ID))
	require.NoError(t, p.IncrementLoginCount(a.ID))

	found, err := p.FindAttackerByIP("5.5.5.5")
	require.NoError(t, err)
	assert.Equal(t, int64(3), found.LoginCount)
}

func TestUpsertCredentials_IncrementsCount(t *testing.T) {
	p := newTestProvider(t)

	c1, err := p.UpsertCredentials("alice", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c1.Count)

	c2, err := p.UpsertCredentials("alice", "a")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, int64(2), c2.Count)
}

// At most one link row should ever exist per (attacker, credentials) pair.
func TestLinkExistsAndInsert(t *testing.T) {
	p := newTestProvider(t)
	a, err := p.CreateAttacker("9.9.9.9")
	require.NoError(t, err)
	c, err := p.UpsertCredentials("bob", "b")
	require.NoError(t, err)

	exists, err := p.LinkExists(a.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, p.InsertLink(a.ID, c.ID))

	exists, err = p.LinkExists(a.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListFilesPendingReputation(t *testing.T) {
	p := newTestProvider(t)
	a, err := p.CreateAttacker("10.0.0.1")
	require.NoError(t, err)

	id, err := p.InsertUploadedFile(&UploadedFile{
		Filename:   "readme",
		Hash:       "abc123",
		AttackerID: a.ID,
		Size:       6,
	})
	require.NoError(t, err)

	pending, err := p.ListFilesPendingReputation()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	require.NoError(t, p.UpdateFileReputation(id, "https://vt.example/abc123/details"))

	pending, err = p.ListFilesPendingReputation()
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}

func TestListAndDeleteStaleAttackers(t *testing.T) {
	p := newTestProvider(t)
	a, err := p.CreateAttacker("172.16.0.1")
	require.NoError(t, err)
	_, err = p.InsertUploadedFile(&UploadedFile{Filename: "x", Hash: "h", AttackerID: a.ID, Size: 1})
	require.NoError(t, err)

	future := time.Now().Add(24 * time.Hour)
	stale, err := p.ListStaleAttackers(future)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	require.NoError(t, p.DeleteStaleAttackers(future))

	_, err = p.FindAttackerByIP("172.16.0.1")
	assert.ErrorIs(t, err, ErrNotFound)
}
