// Package loginpolicy implements the graduated-trust admission controller:
// it decides, per remote IP and per credential pair, when to admit a
// login. The comparison against the configured threshold is expressed as
// literal Less/Equal/Greater branches, not folded into a single boolean
// expression.
package loginpolicy

import (
	"fmt"
	"math/rand"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/vfs"
)

// Policy evaluates PASS attempts against the configured threshold.
type Policy struct {
	Provider  dataprovider.Provider
	Threshold int64
	Seeds     func() ([]vfs.SeedFile, error)
	Rand      *rand.Rand
}

func New(p dataprovider.Provider, threshold int64, seeds func() ([]vfs.SeedFile, error), r *rand.Rand) *Policy {
	return &Policy{Provider: p, Threshold: threshold, Seeds: seeds, Rand: r}
}

// Result is the outcome of one PASS attempt.
type Result struct {
	Admitted bool
	Attacker *dataprovider.Attacker
}

// Evaluate runs the graduated-trust admission algorithm for one (username,
// password, ip) attempt.
func (p *Policy) Evaluate(username, password, ip string) (Result, error) {
	attacker, err := p.Provider.FindAttackerByIP(ip)
	if err != nil {
		if err != dataprovider.ErrNotFound {
			return Result{}, fmt.Errorf("loginpolicy: find attacker: %w", err)
		}
		// Step 1: first sighting of this IP. Always not-admitted.
		created, err := p.Provider.CreateAttacker(ip)
		if err != nil {
			return Result{}, fmt.Errorf("loginpolicy: create attacker: %w", err)
		}
		creds, err := p.Provider.UpsertCredentials(username, password)
		if err != nil {
			return Result{}, fmt.Errorf("loginpolicy: upsert credentials: %w", err)
		}
		if err := p.Provider.InsertLink(created.ID, creds.ID); err != nil {
			return Result{}, fmt.Errorf("loginpolicy: insert link: %w", err)
		}
		return Result{Admitted: false, Attacker: created}, nil
	}

	// L counts this attempt, so the T-th PASS from an IP is the L == T case.
	L := attacker.LoginCount + 1
	creds, err := p.Provider.UpsertCredentials(username, password)
	if err != nil {
		return Result{}, fmt.Errorf("loginpolicy: upsert credentials: %w", err)
	}

	switch {
	case L < p.Threshold:
		if err := p.Provider.IncrementLoginCount(attacker.ID); err != nil {
			return Result{}, fmt.Errorf("loginpolicy: increment login count: %w", err)
		}
		exists, err := p.Provider.LinkExists(attacker.ID, creds.ID)
		if err != nil {
			return Result{}, fmt.Errorf("loginpolicy: check link: %w", err)
		}
		if !exists {
			if err := p.Provider.InsertLink(attacker.ID, creds.ID); err != nil {
				return Result{}, fmt.Errorf("loginpolicy: insert link: %w", err)
			}
		}
		attacker.LoginCount++
		return Result{Admitted: false, Attacker: attacker}, nil

	case L == p.Threshold:
		return p.checkAndPossiblyAdmit(attacker, creds)

	case L > p.Threshold && attacker.AcceptedCredentialsID == nil:
		return p.checkAndPossiblyAdmit(attacker, creds)

	default: // L > p.Threshold && attacker.AcceptedCredentialsID != nil
		if err := p.Provider.IncrementLoginCount(attacker.ID); err != nil {
			return Result{}, fmt.Errorf("loginpolicy: increment login count: %w", err)
		}
		attacker.LoginCount++
		admitted := attacker.Credentials != nil &&
			attacker.Credentials.Username == username &&
			attacker.Credentials.Password == password
		return Result{Admitted: admitted, Attacker: attacker}, nil
	}
}

// checkAndPossiblyAdmit is the "L = T, or L > T with no binding yet" path:
// a pair this attacker has already tried is denied, an untried pair is
// admitted and bound.
func (p *Policy) checkAndPossiblyAdmit(attacker *dataprovider.Attacker, creds *dataprovider.Credentials) (Result, error) {
	exists, err := p.Provider.LinkExists(attacker.ID, creds.ID)
	if err != nil {
		return Result{}, fmt.Errorf("loginpolicy: check link: %w", err)
	}
	if exists {
		if err := p.Provider.IncrementLoginCount(attacker.ID); err != nil {
			return Result{}, fmt.Errorf("loginpolicy: increment login count: %w", err)
		}
		attacker.LoginCount++
		return Result{Admitted: false, Attacker: attacker}, nil
	}

	// The filesystem is built exactly once, at first admission.
	var fsPtr *vfs.FileSystem
	if attacker.FileSystem.Root == nil {
		seeds, err := p.Seeds()
		if err != nil {
			return Result{}, fmt.Errorf("loginpolicy: load seeds: %w", err)
		}
		fs := vfs.BuildDefault(p.Rand, seeds)
		fsPtr = fs
	}

	if err := p.Provider.BindCredentials(attacker.ID, creds.ID, fsPtr); err != nil {
		return Result{}, fmt.Errorf("loginpolicy: bind credentials: %w", err)
	}

	attacker.AcceptedCredentialsID = &creds.ID
	attacker.Credentials = creds
	if fsPtr != nil {
		attacker.FileSystem = *fsPtr
	}
	attacker.LoginCount++
	return Result{Admitted: true, Attacker: attacker}, nil
}
