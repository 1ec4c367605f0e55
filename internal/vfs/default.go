package vfs

import (
	"math/rand"
	"time"
)

// SeedFile is one decoy file drawn from the configured seed directory,
// ready to be copied into a fresh attacker's virtual tree.
type SeedFile struct {
	Name         string
	Size         int64
	PhysicalPath string
}

// year is used to bound the randomized historical timestamps assigned to
// the default skeleton below.
const year = 365 * 24 * time.Hour

func randomPastStamp(r *rand.Rand) string {
	d := time.Duration(r.Int63n(int64(year)))
	return time.Now().UTC().Add(-d).Format("Jan 2 15:04")
}

// BuildDefault builds the fixed decoy skeleton: root holds "pictures" and
// "documents"; "documents" holds "invoices" and "private". The seeds are
// shuffled with r and the first 15 are distributed across those four nodes
// by fixed slice ranges. Node timestamps are randomized between now and
// roughly a year ago.
func BuildDefault(r *rand.Rand, seeds []SeedFile) *FileSystem {
	seeds = append([]SeedFile(nil), seeds...)
	r.Shuffle(len(seeds), func(i, j int) { seeds[i], seeds[j] = seeds[j], seeds[i] })

	fs := New()
	fs.Root.Timestamp = randomPastStamp(r)

	pictures := newNode("pictures", randomPastStamp(r))
	documents := newNode("documents", randomPastStamp(r))
	invoices := newNode("invoices", randomPastStamp(r))
	private := newNode("private", randomPastStamp(r))

	documents.Children["invoices"] = invoices
	documents.Children["private"] = private
	fs.Root.Children["pictures"] = pictures
	fs.Root.Children["documents"] = documents

	// Fixed distribution of the 15 seed files: 5 to pictures, 3 directly
	// under documents, 4 to invoices, 3 to private.
	ranges := []struct {
		node *Node
		lo   int
		hi   int
	}{
		{pictures, 0, 5},
		{documents, 5, 8},
		{invoices, 8, 12},
		{private, 12, 15},
	}
	for _, rg := range ranges {
		for i := rg.lo; i < rg.hi && i < len(seeds); i++ {
			s := seeds[i]
			path := s.PhysicalPath
			rg.node.Files = append(rg.node.Files, File{
				Name:        s.Name,
				Size:        s.Size,
				DefaultFile: &path,
				Timestamp:   randomPastStamp(r),
			})
			rg.node.Size += s.Size
		}
	}
	return fs
}
