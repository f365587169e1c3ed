package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/iconidentify/dispatcher/internal/domain"
)

type memContent []byte

func (c memContent) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c)), nil
}

func (c memContent) Size() int64 { return int64(len(c)) }

type failingContent struct{}

func (failingContent) Open() (io.ReadCloser, error) { return nil, errors.New("gone") }
func (failingContent) Size() int64                  { return 0 }

func dropped(names ...string) []domain.FileRef {
	out := make([]domain.FileRef, len(names))
	for i, n := range names {
		out[i] = domain.FileRef{OriginalName: n, Content: memContent("data:" + n)}
	}
	return out
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"clip1.mov", "mov"},
		{"clip.final.MP4", "MP4"},
		{"noextension", "mp4"},
		{"trailingdot.", "mp4"},
		{".hidden", "hidden"},
		{"", "mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extension(tt.name, "mp4"); got != tt.want {
				t.Errorf("Extension(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		group string
		index int
		orig  string
		want  string
	}{
		{"A_Melo", 0, "clip1.mov", "A_Melo_001.mov"},
		{"A_Melo", 9, "x.mp4", "A_Melo_010.mp4"},
		{"Chorus", 998, "y.mkv", "Chorus_999.mkv"},
		{"Chorus", 999, "y.mkv", "Chorus_1000.mkv"},
		{"B", 1, "raw", "B_002.mp4"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.group, tt.index, tt.orig, "mp4"); got != tt.want {
			t.Errorf("OutputName(%q, %d, %q) = %q, want %q", tt.group, tt.index, tt.orig, got, tt.want)
		}
	}
}

func TestGroupName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Chorus", "Chorus"},
		{"a/b", "a_b"},
		{`a\b`, "a_b"},
		{"..", "_"},
		{"Café", "Café"},
	}
	for _, tt := range tests {
		if got := GroupName(tt.in); got != tt.want {
			t.Errorf("GroupName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlan_SkipsEmptyAndNumbersInOrder(t *testing.T) {
	ws := domain.NewWorkspace(domain.DefaultFolderNames...)
	folders := ws.Folders()
	ws, _, _ = ws.AddFiles(folders[2].ID, dropped("c.mov", "d", "e.MXF"))

	entries := Plan(ws.Folders(), "")
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	want := []string{"Chorus/Chorus_001.mov", "Chorus/Chorus_002.mp4", "Chorus/Chorus_003.MXF"}
	for i, e := range entries {
		if e.Path != want[i] {
			t.Errorf("entries[%d].Path = %q, want %q", i, e.Path, want[i])
		}
		if e.Group != "Chorus" {
			t.Errorf("entries[%d].Group = %q", i, e.Group)
		}
	}
}

func TestPlan_DuplicateFolderNamesStayUnique(t *testing.T) {
	ws := domain.NewWorkspace("Chorus (2)", "Chorus", "Chorus")
	for _, f := range ws.Folders() {
		ws, _, _ = ws.AddFiles(f.ID, dropped("x.mov"))
	}

	seen := make(map[string]bool)
	for _, e := range Plan(ws.Folders(), "mp4") {
		if seen[e.Path] {
			t.Fatalf("duplicate path %q", e.Path)
		}
		seen[e.Path] = true
	}
	if !seen["Chorus (3)/Chorus (3)_001.mov"] {
		t.Errorf("paths = %v", seen)
	}
}

func TestBuilder_Build_Scenario(t *testing.T) {
	ws := domain.NewWorkspace(domain.DefaultFolderNames...)
	folders := ws.Folders()
	ws, added, _ := ws.AddFiles(folders[0].ID, dropped("clip1.mov", "clip2.mp4"))

	b := NewBuilder("")
	data, entries, err := b.Build(context.Background(), ws.Folders())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	files := readArchive(t, data)
	if files["A_Melo/A_Melo_001.mov"] != "data:clip1.mov" {
		t.Errorf("A_Melo_001.mov = %q", files["A_Melo/A_Melo_001.mov"])
	}
	if files["A_Melo/A_Melo_002.mp4"] != "data:clip2.mp4" {
		t.Errorf("A_Melo_002.mp4 = %q", files["A_Melo/A_Melo_002.mp4"])
	}
	if _, ok := files["A_Melo/"]; !ok {
		t.Error("missing folder entry A_Melo/")
	}
	for name := range files {
		if name[:6] != "A_Melo" {
			t.Errorf("unexpected entry %q from empty folder", name)
		}
	}

	// Swap the two files and export again.
	ws, err = ws.MoveFileTo(folders[0].ID, added[1].ID, added[0].ID)
	if err != nil {
		t.Fatalf("MoveFileTo() error = %v", err)
	}
	data, _, err = b.Build(context.Background(), ws.Folders())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	files = readArchive(t, data)
	if files["A_Melo/A_Melo_001.mp4"] != "data:clip2.mp4" {
		t.Errorf("after swap A_Melo_001.mp4 = %q", files["A_Melo/A_Melo_001.mp4"])
	}
	if files["A_Melo/A_Melo_002.mov"] != "data:clip1.mov" {
		t.Errorf("after swap A_Melo_002.mov = %q", files["A_Melo/A_Melo_002.mov"])
	}
	if len(files) != 3 {
		t.Errorf("entries = %d, want 3", len(files))
	}
}

func TestBuilder_Build_EntriesAreStored(t *testing.T) {
	ws := domain.NewWorkspace("Intro")
	ws, _, _ = ws.AddFiles(ws.ActiveID(), dropped("a.mov"))

	data, _, err := NewBuilder("").Build(context.Background(), ws.Folders())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Method != zip.Store {
			t.Errorf("%s method = %d, want Store", f.Name, f.Method)
		}
	}
}

func TestBuilder_Build_NoFiles(t *testing.T) {
	ws := domain.NewWorkspace(domain.DefaultFolderNames...)
	data, entries, err := NewBuilder("").Build(context.Background(), ws.Folders())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
	if files := readArchive(t, data); len(files) != 0 {
		t.Errorf("archive should be empty, got %v", files)
	}
}

func TestBuilder_Build_ContentError(t *testing.T) {
	ws := domain.NewWorkspace("Intro")
	ws, _, _ = ws.AddFiles(ws.ActiveID(), []domain.FileRef{{OriginalName: "a.mov", Content: failingContent{}}})

	_, _, err := NewBuilder("").Build(context.Background(), ws.Folders())
	if err == nil {
		t.Fatal("Build() should fail when content cannot be opened")
	}
}

func TestBuilder_Build_Cancelled(t *testing.T) {
	ws := domain.NewWorkspace("Intro")
	ws, _, _ = ws.AddFiles(ws.ActiveID(), dropped("a.mov"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewBuilder("").Build(ctx, ws.Folders())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
