package vfs

import "sort"

// Node is a directory in the virtual filesystem tree: a name, an
// aggregate size, a set of child directories keyed by name, and the files
// directly contained in it.
type Node struct {
	Name      string           `json:"name"`
	Size      int64            `json:"size"`
	Children  map[string]*Node `json:"children"`
	Files     []File           `json:"files"`
	Timestamp string           `json:"timestamp"`
}

// File is a single file entry inside a Node's file list. Exactly one of
// FileID or DefaultFile is set: FileID for an attacker-uploaded file backed
// by an UploadedFile row, DefaultFile for a decoy copied from the seed
// directory.
type File struct {
	Name        string  `json:"name"`
	Size        int64   `json:"size"`
	FileID      *uint   `json:"file_id,omitempty"`
	Timestamp   string  `json:"timestamp"`
	DefaultFile *string `json:"default_file,omitempty"`
}

func newNode(name, timestamp string) *Node {
	return &Node{
		Name:      name,
		Children:  map[string]*Node{},
		Files:     []File{},
		Timestamp: timestamp,
	}
}

// sortedChildNames returns child directory names sorted lexicographically.
func (n *Node) sortedChildNames() []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortedFileNames returns file names sorted lexicographically.
func (n *Node) sortedFileNames() []string {
	names := make([]string, 0, len(n.Files))
	for _, f := range n.Files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func (n *Node) fileByName(name string) (*File, int) {
	for i := range n.Files {
		if n.Files[i].Name == name {
			return &n.Files[i], i
		}
	}
	return nil, -1
}
