package loginpolicy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/vfs"
)

func noSeeds() ([]vfs.SeedFile, error) { return nil, nil }

func newPolicy(t *testing.T, threshold int64) (*Policy, dataprovider.Provider) {
	t.Helper()
	p, err := dataprovider.OpenSQLite("file::memory:?cache=shared")
	require.NoError(t, err)
	return New(p, threshold, noSeeds, rand.New(rand.NewSource(1))), p
}

// Graduated-trust admission, threshold 3.
func TestEvaluate_GraduatedTrustAdmission(t *testing.T) {
	policy, _ := newPolicy(t, 3)

	r, err := policy.Evaluate("alice", "a", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, r.Admitted)
	assert.Equal(t, int64(1), r.Attacker.LoginCount)

	r, err = policy.Evaluate("bob", "b", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, r.Admitted)
	assert.Equal(t, int64(2), r.Attacker.LoginCount)

	r, err = policy.Evaluate("carol", "c", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Admitted)
	assert.Equal(t, int64(3), r.Attacker.LoginCount)
	require.NotNil(t, r.Attacker.AcceptedCredentialsID)

	r, err = policy.Evaluate("carol", "c", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Admitted)
	assert.Equal(t, int64(4), r.Attacker.LoginCount)

	r, err = policy.Evaluate("dave", "d", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, r.Admitted)
	assert.Equal(t, int64(5), r.Attacker.LoginCount)
}

// Retrying the same pair once already at the threshold should deny.
func TestEvaluate_RetrySamePairDeniedAtThreshold(t *testing.T) {
	policy, _ := newPolicy(t, 3)

	for i := 0; i < 3; i++ {
		r, err := policy.Evaluate("x", "x", "2.2.2.2")
		require.NoError(t, err)
		assert.False(t, r.Admitted)
	}

	p := policy.Provider
	a, err := p.FindAttackerByIP("2.2.2.2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.LoginCount)
	assert.Nil(t, a.AcceptedCredentialsID)
}

// For L > T with a bound pair, admit iff credentials match exactly.
func TestEvaluate_BoundCredentialsMismatchDenies(t *testing.T) {
	policy, p := newPolicy(t, 1)

	_, err := policy.Evaluate("u", "p", "3.3.3.3") // creates attacker, L=1 (not admitted, first sighting)
	require.NoError(t, err)
	r, err := policy.Evaluate("v", "q", "3.3.3.3") // L=2>T, no binding yet, untried pair: admits and binds
	require.NoError(t, err)
	require.True(t, r.Admitted)

	r, err = policy.Evaluate("other", "pw", "3.3.3.3") // L=3>T, mismatched creds
	require.NoError(t, err)
	assert.False(t, r.Admitted)

	a, err := p.FindAttackerByIP("3.3.3.3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.LoginCount)
}
