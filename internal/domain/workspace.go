package domain

import (
	"strings"
	"time"
)

// DefaultPlaceholderName is used for folders created without a usable name.
const DefaultPlaceholderName = "New Folder"

// DefaultFolderNames are seeded into a fresh workspace.
var DefaultFolderNames = []string{"A_Melo", "B_Melo", "Chorus"}

// Workspace is the complete folder/file model of one session.
//
// A Workspace is a value: every mutation returns a new Workspace and leaves
// the receiver untouched, so a snapshot taken for export stays valid while
// the session keeps editing.
type Workspace struct {
	folders     []Folder
	activeID    FolderID
	placeholder string
}

// NewWorkspace creates a workspace seeded with one folder per name. The
// first seeded folder is active.
func NewWorkspace(names ...string) Workspace {
	ws := Workspace{placeholder: DefaultPlaceholderName}
	for _, name := range names {
		ws, _ = ws.appendFolder(name)
	}
	if len(ws.folders) > 0 {
		ws.activeID = ws.folders[0].ID
	}
	return ws
}

// WithPlaceholder returns a workspace that names unnamed folders name.
func (w Workspace) WithPlaceholder(name string) Workspace {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlaceholderName
	}
	w.placeholder = name
	return w
}

// Folders returns a copy of the folders in display order.
func (w Workspace) Folders() []Folder {
	out := make([]Folder, len(w.folders))
	for i, f := range w.folders {
		out[i] = f.clone()
	}
	return out
}

// Len returns the number of folders.
func (w Workspace) Len() int {
	return len(w.folders)
}

// ActiveID returns the active folder's ID, or "" when there is none.
func (w Workspace) ActiveID() FolderID {
	return w.activeID
}

// Active returns the active folder.
func (w Workspace) Active() (Folder, bool) {
	if w.activeID == "" {
		return Folder{}, false
	}
	f, err := w.Folder(w.activeID)
	if err != nil {
		return Folder{}, false
	}
	return f, true
}

// Folder returns a copy of the folder with the given ID.
func (w Workspace) Folder(id FolderID) (Folder, error) {
	i := w.indexOf(id)
	if i < 0 {
		return Folder{}, ErrFolderNotFound
	}
	return w.folders[i].clone(), nil
}

// FindFile locates a file anywhere in the workspace.
func (w Workspace) FindFile(id FileID) (FolderID, FileRef, bool) {
	for _, f := range w.folders {
		if i := f.IndexOf(id); i >= 0 {
			return f.ID, f.Files[i], true
		}
	}
	return "", FileRef{}, false
}

// FileCount returns the number of file references across all folders.
func (w Workspace) FileCount() int {
	n := 0
	for _, f := range w.folders {
		n += len(f.Files)
	}
	return n
}

// AddFolder appends a folder and makes it active. An empty or whitespace
// name falls back to the placeholder.
func (w Workspace) AddFolder(name string) (Workspace, Folder) {
	next, folder := w.appendFolder(name)
	next.activeID = folder.ID
	return next, folder
}

// RenameFolder replaces a folder's name with the trimmed newName. A name
// that is empty after trimming leaves the folder unchanged.
func (w Workspace) RenameFolder(id FolderID, newName string) (Workspace, error) {
	i := w.indexOf(id)
	if i < 0 {
		return w, NewFolderError(id, "rename folder", ErrFolderNotFound)
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return w, nil
	}
	next := w.copyFolders()
	next.folders[i].Name = newName
	return next, nil
}

// DeleteFolder removes a folder and every file reference in it. The removed
// references are returned so their resources can be released. When the
// active folder is deleted, the first remaining folder becomes active.
func (w Workspace) DeleteFolder(id FolderID) (Workspace, []FileRef, error) {
	i := w.indexOf(id)
	if i < 0 {
		return w, nil, NewFolderError(id, "delete folder", ErrFolderNotFound)
	}
	removed := w.folders[i].clone().Files

	next := w
	next.folders = make([]Folder, 0, len(w.folders)-1)
	next.folders = append(next.folders, w.folders[:i]...)
	next.folders = append(next.folders, w.folders[i+1:]...)

	if w.activeID == id {
		next.activeID = ""
		if len(next.folders) > 0 {
			next.activeID = next.folders[0].ID
		}
	}
	return next, removed, nil
}

// SetActive makes an existing folder the active one.
func (w Workspace) SetActive(id FolderID) (Workspace, error) {
	if w.indexOf(id) < 0 {
		return w, NewFolderError(id, "activate folder", ErrFolderNotFound)
	}
	w.activeID = id
	return w, nil
}

// AddFiles appends files to a folder in the given order. Every reference is
// assigned a fresh ID, so IDs stay unique across the whole workspace.
func (w Workspace) AddFiles(folderID FolderID, files []FileRef) (Workspace, []FileRef, error) {
	i := w.indexOf(folderID)
	if i < 0 {
		return w, nil, NewFolderError(folderID, "add files", ErrFolderNotFound)
	}

	now := time.Now()
	added := make([]FileRef, len(files))
	for j, f := range files {
		f.ID = NewFileID()
		if f.AddedAt.IsZero() {
			f.AddedAt = now
		}
		added[j] = f
	}

	next := w.copyFolders()
	folder := next.folders[i].clone()
	folder.Files = append(folder.Files, added...)
	next.folders[i] = folder
	return next, added, nil
}

// DeleteFile removes one file reference from one folder.
func (w Workspace) DeleteFile(folderID FolderID, fileID FileID) (Workspace, FileRef, error) {
	i := w.indexOf(folderID)
	if i < 0 {
		return w, FileRef{}, NewFolderError(folderID, "delete file", ErrFolderNotFound)
	}
	j := w.folders[i].IndexOf(fileID)
	if j < 0 {
		return w, FileRef{}, NewFolderError(folderID, "delete file", ErrFileNotFound)
	}

	src := w.folders[i].Files
	removed := src[j]
	files := make([]FileRef, 0, len(src)-1)
	files = append(files, src[:j]...)
	files = append(files, src[j+1:]...)

	next := w.copyFolders()
	next.folders[i].Files = files
	return next, removed, nil
}

// ReorderFiles moves the file at index from to index to, shifting the
// files in between. Equal or out-of-range indices leave the workspace
// unchanged.
func (w Workspace) ReorderFiles(folderID FolderID, from, to int) (Workspace, error) {
	i := w.indexOf(folderID)
	if i < 0 {
		return w, NewFolderError(folderID, "reorder files", ErrFolderNotFound)
	}
	n := len(w.folders[i].Files)
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		return w, nil
	}

	next := w.copyFolders()
	next.folders[i].Files = moveFile(w.folders[i].Files, from, to)
	return next, nil
}

// MoveFileTo moves the file activeID into the position currently held by
// overID, the way a drag gesture ends. Unknown file IDs leave the
// workspace unchanged.
func (w Workspace) MoveFileTo(folderID FolderID, activeID, overID FileID) (Workspace, error) {
	i := w.indexOf(folderID)
	if i < 0 {
		return w, NewFolderError(folderID, "move file", ErrFolderNotFound)
	}
	folder := w.folders[i]
	return w.ReorderFiles(folderID, folder.IndexOf(activeID), folder.IndexOf(overID))
}

// moveFile returns a new slice with files[from] relocated to index to.
func moveFile(files []FileRef, from, to int) []FileRef {
	out := make([]FileRef, 0, len(files))
	moved := files[from]
	for k, f := range files {
		if k == from {
			continue
		}
		out = append(out, f)
	}
	out = append(out, FileRef{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

func (w Workspace) appendFolder(name string) (Workspace, Folder) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = w.placeholder
		if name == "" {
			name = DefaultPlaceholderName
		}
	}
	folder := Folder{ID: NewFolderID(), Name: name, Files: []FileRef{}}

	next := w
	next.folders = make([]Folder, len(w.folders), len(w.folders)+1)
	copy(next.folders, w.folders)
	next.folders = append(next.folders, folder)
	return next, folder.clone()
}

// copyFolders returns a workspace whose folder slice can be written to
// without affecting the receiver. Folder file slices are still shared and
// must be replaced, not modified in place.
func (w Workspace) copyFolders() Workspace {
	folders := make([]Folder, len(w.folders))
	copy(folders, w.folders)
	w.folders = folders
	return w
}

func (w Workspace) indexOf(id FolderID) int {
	for i, f := range w.folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}
