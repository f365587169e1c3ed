package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/repository"
)

// PlanFile describes folders and the files that go in them. Plans ending in
// .toml are read as TOML, anything else as YAML.
//
//	folders:
//	  - name: A_Melo
//	    files: ["takes/verse/*.mov", "extra.mp4"]
type PlanFile struct {
	Folders []PlanFolder `yaml:"folders" toml:"folders"`
}

// PlanFolder lists glob patterns, relative to the plan file, whose matches
// are added in pattern order and then name order.
type PlanFolder struct {
	Name  string   `yaml:"name" toml:"name"`
	Files []string `yaml:"files" toml:"files"`
}

func loadPlan(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan PlanFile
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		unmarshal = toml.Unmarshal
	}
	if err := unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(plan.Folders) == 0 {
		return nil, fmt.Errorf("plan %s defines no folders", path)
	}
	return &plan, nil
}

// resolve expands every folder's patterns against baseDir. A path matched
// by several patterns of the same folder is added once.
func (p *PlanFile) resolve(baseDir string) ([][]string, error) {
	out := make([][]string, len(p.Folders))
	for i, folder := range p.Folders {
		seen := make(map[string]bool)
		for _, pattern := range folder.Files {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(baseDir, pattern)
			}
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("folder %q: pattern %q: %w", folder.Name, pattern, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if !seen[m] {
					seen[m] = true
					out[i] = append(out[i], m)
				}
			}
		}
	}
	return out, nil
}

// buildWorkspace creates a workspace holding the plan's folders, with files
// referenced in place.
func buildWorkspace(p *PlanFile, baseDir, placeholder string) (domain.Workspace, error) {
	paths, err := p.resolve(baseDir)
	if err != nil {
		return domain.Workspace{}, err
	}

	ws := domain.NewWorkspace().WithPlaceholder(placeholder)
	for i, folder := range p.Folders {
		var f domain.Folder
		ws, f = ws.AddFolder(folder.Name)

		refs := make([]domain.FileRef, 0, len(paths[i]))
		for _, path := range paths[i] {
			content, err := repository.NewFileContent(path)
			if err != nil {
				return domain.Workspace{}, err
			}
			name := filepath.Base(path)
			refs = append(refs, domain.FileRef{
				OriginalName: name,
				ContentType:  mime.TypeByExtension(filepath.Ext(name)),
				Content:      content,
			})
		}
		if ws, _, err = ws.AddFiles(f.ID, refs); err != nil {
			return domain.Workspace{}, err
		}
	}
	return ws, nil
}
