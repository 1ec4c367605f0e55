package vfs

import (
	"strconv"
	"strings"
	"time"
)

// FileSystem is the entire per-attacker virtual tree, together with the
// current working path. It is serialized as a JSON blob inside the owning
// Attacker row (see internal/dataprovider); durability is the caller's
// responsibility — every mutating method here returns true only when the
// tree changed, and callers must write the tree back on every true return.
type FileSystem struct {
	Root        *Node    `json:"root"`
	CurrentPath []string `json:"current_path"`
}

// New builds an empty filesystem with a bare root directory.
func New() *FileSystem {
	return &FileSystem{
		Root:        newNode("", nowStamp()),
		CurrentPath: []string{},
	}
}

func nowStamp() string {
	return time.Now().UTC().Format("Jan 2 15:04")
}

// nodeAt walks the tree from root along path, returning the node and
// whether every component resolved to an existing child directory.
func (fs *FileSystem) nodeAt(path []string) (*Node, bool) {
	n := fs.Root
	for _, c := range path {
		child, ok := n.Children[c]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

// resolve applies the path-syntax rules from a starting path, validating
// each non-"."/".."  component against the actual tree.
func (fs *FileSystem) resolve(from []string, path string) ([]string, bool) {
	cur := append([]string(nil), from...)
	comps := strings.Split(path, "/")
	for i, c := range comps {
		switch {
		case c == "":
			if i == 0 {
				cur = cur[:0]
			}
			// embedded empty components (double slashes) are a no-op.
		case c == ".":
			// no-op
		case c == "..":
			if len(cur) > 0 {
				cur = cur[:len(cur)-1]
			}
		default:
			node, ok := fs.nodeAt(cur)
			if !ok {
				return nil, false
			}
			if _, exists := node.Children[c]; !exists {
				return nil, false
			}
			cur = append(cur, c)
		}
	}
	return cur, true
}

// Resolve resolves path against the current working path without mutating
// it, locating a node without performing a cd.
func (fs *FileSystem) Resolve(path string) ([]string, bool) {
	return fs.resolve(fs.CurrentPath, path)
}

func splitParentChild(path string) (parent, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ".", path
	}
	return path[:idx], path[idx+1:]
}

// SplitPath exposes splitParentChild for callers outside the package (the
// FTP session needs it to separate STOR's destination directory from its
// filename).
func SplitPath(path string) (parent, name string) {
	return splitParentChild(path)
}

// Cd resolves path against the current working path and, on success,
// replaces it.
func (fs *FileSystem) Cd(path string) bool {
	next, ok := fs.Resolve(path)
	if !ok {
		return false
	}
	fs.CurrentPath = next
	return true
}

// Pwd renders the current working path as an absolute "/a/b/c" string.
func (fs *FileSystem) Pwd() string {
	if len(fs.CurrentPath) == 0 {
		return "/"
	}
	return "/" + strings.Join(fs.CurrentPath, "/")
}

// Ls lists the current directory, or the resolved path if non-empty: child
// directory names sorted lexicographically followed by file names sorted
// lexicographically, joined by CRLF.
func (fs *FileSystem) Ls(path string) (string, bool) {
	target := fs.CurrentPath
	if path != "" {
		p, ok := fs.Resolve(path)
		if !ok {
			return "", false
		}
		target = p
	}
	node, ok := fs.nodeAt(target)
	if !ok {
		return "", false
	}
	var lines []string
	for _, name := range node.sortedChildNames() {
		lines = append(lines, name)
	}
	for _, name := range node.sortedFileNames() {
		lines = append(lines, name)
	}
	return strings.Join(lines, "\r\n"), true
}

func dirLine(uid int, size int64, timestamp, name string) string {
	return formatLine("drwxr-sr-x", uid, size, timestamp, name)
}

func fileLine(uid int, size int64, timestamp, name string) string {
	return formatLine("-rw-r--r--", uid, size, timestamp, name)
}

func formatLine(mode string, uid int, size int64, timestamp, name string) string {
	u := strconv.Itoa(uid)
	return mode + "\t1 " + u + "\t" + u + "\t\t" + strconv.FormatInt(size, 10) + " " + timestamp + " " + name
}

// LsLong lists the current directory in long form, uid derived from the
// attacker id.
func (fs *FileSystem) LsLong(attackerID uint) (string, bool) {
	return fs.lsLong(attackerID, false)
}

// LsLongA is LsLong with synthetic "." and ".." entries prepended.
func (fs *FileSystem) LsLongA(attackerID uint) (string, bool) {
	return fs.lsLong(attackerID, true)
}

func (fs *FileSystem) lsLong(attackerID uint, withDotEntries bool) (string, bool) {
	node, ok := fs.nodeAt(fs.CurrentPath)
	if !ok {
		return "", false
	}
	uid := int(attackerID) + 1000
	var lines []string
	if withDotEntries {
		lines = append(lines, dirLine(uid, 0, "Mar 16 21:23", "."))
		lines = append(lines, dirLine(uid, 0, "Mar 13 19:59", ".."))
	}
	for _, name := range node.sortedChildNames() {
		child := node.Children[name]
		lines = append(lines, dirLine(uid, child.Size, child.Timestamp, name))
	}
	for _, name := range node.sortedFileNames() {
		f, _ := node.fileByName(name)
		lines = append(lines, fileLine(uid, f.Size, f.Timestamp, name))
	}
	return strings.Join(lines, "\r\n"), true
}

// Mkdir creates a new, empty directory. It succeeds only if the parent
// resolves and no existing child directory already has the new name.
func (fs *FileSystem) Mkdir(path string) bool {
	parentPath, name := splitParentChild(path)
	resolved, ok := fs.Resolve(parentPath)
	if !ok {
		return false
	}
	parent, ok := fs.nodeAt(resolved)
	if !ok {
		return false
	}
	if _, exists := parent.Children[name]; exists {
		return false
	}
	parent.Children[name] = newNode(name, nowStamp())
	return true
}

// Rmdir removes an existing, empty directory.
func (fs *FileSystem) Rmdir(path string) bool {
	parentPath, name := splitParentChild(path)
	resolved, ok := fs.Resolve(parentPath)
	if !ok {
		return false
	}
	parent, ok := fs.nodeAt(resolved)
	if !ok {
		return false
	}
	target, exists := parent.Children[name]
	if !exists {
		return false
	}
	if len(target.Children) > 0 || len(target.Files) > 0 {
		return false
	}
	delete(parent.Children, name)
	return true
}

// Rm removes a file from its leaf directory by exact name. It is a
// no-op-fail if the file is absent.
func (fs *FileSystem) Rm(path string) bool {
	parentPath, name := splitParentChild(path)
	resolved, ok := fs.Resolve(parentPath)
	if !ok {
		return false
	}
	parent, ok := fs.nodeAt(resolved)
	if !ok {
		return false
	}
	_, idx := parent.fileByName(name)
	if idx < 0 {
		return false
	}
	parent.Files = append(parent.Files[:idx], parent.Files[idx+1:]...)
	return true
}

// AddUploadedFile appends a File entry backed by an UploadedFile row (an
// attacker-provided upload, not a decoy) to the resolved directory, and
// bumps that directory's aggregate size.
func (fs *FileSystem) AddUploadedFile(dirPath, name string, fileID uint, size int64) bool {
	resolved, ok := fs.Resolve(dirPath)
	if !ok {
		return false
	}
	dir, ok := fs.nodeAt(resolved)
	if !ok {
		return false
	}
	dir.Files = append(dir.Files, File{
		Name:      name,
		Size:      size,
		FileID:    &fileID,
		Timestamp: nowStamp(),
	})
	dir.Size += size
	return true
}

// AddDecoyFile appends a File entry backed by a seed file on disk (a
// decoy, not an upload) to the resolved directory.
func (fs *FileSystem) AddDecoyFile(dirPath, name, defaultFilePath string, size int64, timestamp string) bool {
	resolved, ok := fs.Resolve(dirPath)
	if !ok {
		return false
	}
	dir, ok := fs.nodeAt(resolved)
	if !ok {
		return false
	}
	dir.Files = append(dir.Files, File{
		Name:        name,
		Size:        size,
		DefaultFile: &defaultFilePath,
		Timestamp:   timestamp,
	})
	dir.Size += size
	return true
}

// FindFile resolves path to its leaf directory and returns the File entry
// matching the final path component by exact name.
func (fs *FileSystem) FindFile(path string) (File, bool) {
	parentPath, name := splitParentChild(path)
	resolved, ok := fs.Resolve(parentPath)
	if !ok {
		return File{}, false
	}
	dir, ok := fs.nodeAt(resolved)
	if !ok {
		return File{}, false
	}
	f, idx := dir.fileByName(name)
	if idx < 0 {
		return File{}, false
	}
	return *f, true
}
