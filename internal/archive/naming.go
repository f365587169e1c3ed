// Package archive turns a workspace snapshot into a ZIP archive whose
// entries are renamed by folder and position.
package archive

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/iconidentify/dispatcher/internal/domain"
)

// DefaultFallbackExtension is used when an original name has no usable suffix.
const DefaultFallbackExtension = "mp4"

// Extension returns the suffix after the last period of name, or fallback
// when there is no period or nothing follows it.
func Extension(name, fallback string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return fallback
	}
	return name[i+1:]
}

// OutputName formats the exported name of the file at zero-based index.
func OutputName(group string, index int, originalName, fallback string) string {
	return fmt.Sprintf("%s_%03d.%s", group, index+1, Extension(originalName, fallback))
}

// GroupName turns a folder display name into a safe archive directory name.
// Names are NFC-normalized so decomposed input (as produced by some file
// pickers) exports identically to composed input.
func GroupName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	switch name {
	case "", ".", "..":
		return "_"
	}
	return name
}

// Plan computes every archive entry for folders in order. Empty folders
// contribute nothing. Non-empty folders that map to the same group name are
// suffixed " (2)", " (3)", ... so each group's entries stay unique.
func Plan(folders []domain.Folder, fallback string) []domain.ArchiveEntry {
	if fallback == "" {
		fallback = DefaultFallbackExtension
	}

	used := make(map[string]bool)
	var entries []domain.ArchiveEntry
	for _, folder := range folders {
		if len(folder.Files) == 0 {
			continue
		}

		group := GroupName(folder.Name)
		if used[group] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s (%d)", group, n)
				if !used[candidate] {
					group = candidate
					break
				}
			}
		}
		used[group] = true

		for i, file := range folder.Files {
			name := OutputName(group, i, file.OriginalName, fallback)
			entries = append(entries, domain.ArchiveEntry{
				FolderID:     folder.ID,
				FileID:       file.ID,
				Group:        group,
				Name:         name,
				Path:         group + "/" + name,
				OriginalName: file.OriginalName,
				Size:         file.Size(),
			})
		}
	}
	return entries
}
