package pkgdb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Helper function to create a DB backed by a temp file.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	d := NewAtPath(filepath.Join(t.TempDir(), "installed.db"))
	if err := d.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return d
}

func vimRecord() Record {
	return Record{
		Name:         "vim",
		Version:      "9.1.0",
		Description:  "Vi Improved, a highly configurable text editor",
		Size:         "40M",
		Architecture: "x86_64",
		UpdateTime:   "12/03/2024",
		Files:        []string{"/usr/bin/vim", "/usr/share/vim/vimrc"},
		Dependencies: []string{"glibc", "ncurses >= 6.0"},
	}
}

func TestNew_PathUnderRoot(t *testing.T) {
	d := New("/srv/target")
	want := filepath.Join("/srv/target", "var", "lib", "starpack", "installed.db")
	if d.Path() != want {
		t.Errorf("Path() = %s, want %s", d.Path(), want)
	}
}

func TestInit_CreatesEmptyFile(t *testing.T) {
	root := t.TempDir()
	d := New(root)
	if err := d.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	info, err := os.Stat(d.Path())
	if err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh database size = %d, want 0", info.Size())
	}

	// A second Init must not truncate an existing database.
	if err := d.Append(vimRecord()); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := d.Init(); err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	ok, err := d.IsInstalled("vim")
	if err != nil {
		t.Fatalf("IsInstalled() failed: %v", err)
	}
	if !ok {
		t.Error("Init() must not truncate an existing database")
	}
}

func TestAppendAndRecord_RoundTrip(t *testing.T) {
	d := newTestDB(t)
	want := vimRecord()

	if err := d.Append(want); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	got, err := d.Record("vim")
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if got.Name != want.Name {
		t.Errorf("Name = %s, want %s", got.Name, want.Name)
	}
	if got.Version != want.Version {
		t.Errorf("Version = %s, want %s", got.Version, want.Version)
	}
	if got.Description != want.Description {
		t.Errorf("Description = %s, want %s", got.Description, want.Description)
	}
	if got.Size != want.Size {
		t.Errorf("Size = %s, want %s", got.Size, want.Size)
	}
	if got.Architecture != want.Architecture {
		t.Errorf("Architecture = %s, want %s", got.Architecture, want.Architecture)
	}
	if got.UpdateTime != want.UpdateTime {
		t.Errorf("UpdateTime = %s, want %s", got.UpdateTime, want.UpdateTime)
	}
	if len(got.Files) != 2 || got.Files[0] != "/usr/bin/vim" {
		t.Errorf("Files = %v, want %v", got.Files, want.Files)
	}
	if len(got.Dependencies) != 2 || got.Dependencies[1] != "ncurses >= 6.0" {
		t.Errorf("Dependencies = %v, want %v", got.Dependencies, want.Dependencies)
	}
}

func TestFormat_BuildDateFallback(t *testing.T) {
	rec := Record{Name: "glibc", Version: "2.39", BuildDate: "01/02/2024"}
	text := rec.Format()

	if !strings.Contains(text, "Build-date: 01/02/2024\n") {
		t.Errorf("Format() should fall back to Build-date:\n%s", text)
	}
	if strings.Contains(text, "Update-time:") {
		t.Errorf("Format() should not emit Update-time when empty:\n%s", text)
	}
	if !strings.HasSuffix(text, Separator+"\n") {
		t.Errorf("Format() must end with the separator line:\n%s", text)
	}
}

func TestRecord_NotInstalled(t *testing.T) {
	d := newTestDB(t)

	_, err := d.Record("nonexistent")
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Record() error = %v, want ErrNotInstalled", err)
	}
}

func TestIsInstalled_MissingFile(t *testing.T) {
	d := NewAtPath(filepath.Join(t.TempDir(), "installed.db"))

	ok, err := d.IsInstalled("vim")
	if err != nil {
		t.Fatalf("IsInstalled() on missing file failed: %v", err)
	}
	if ok {
		t.Error("IsInstalled() on missing file should be false")
	}
}

func TestInstalledPackages_FileOrder(t *testing.T) {
	d := newTestDB(t)
	for _, name := range []string{"zsh", "bash", "vim"} {
		rec := vimRecord()
		rec.Name = name
		if err := d.Append(rec); err != nil {
			t.Fatalf("Append(%s) failed: %v", name, err)
		}
	}

	names, err := d.InstalledPackages()
	if err != nil {
		t.Fatalf("InstalledPackages() failed: %v", err)
	}
	want := []string{"zsh", "bash", "vim"}
	if len(names) != len(want) {
		t.Fatalf("InstalledPackages() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("InstalledPackages()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRemove(t *testing.T) {
	d := newTestDB(t)
	a := vimRecord()
	b := vimRecord()
	b.Name = "htop"
	if err := d.Append(a); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := d.Append(b); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if err := d.Remove("vim"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	if ok, _ := d.IsInstalled("vim"); ok {
		t.Error("vim should be gone after Remove()")
	}
	if ok, _ := d.IsInstalled("htop"); !ok {
		t.Error("htop should survive removing vim")
	}
	if _, err := os.Stat(d.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp database should not remain after Remove()")
	}
}

func TestRemove_NotInstalled(t *testing.T) {
	d := newTestDB(t)

	err := d.Remove("nonexistent")
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Remove() error = %v, want ErrNotInstalled", err)
	}
}

func TestUpdateFields(t *testing.T) {
	d := newTestDB(t)
	other := vimRecord()
	other.Name = "htop"
	if err := d.Append(other); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := d.Append(vimRecord()); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if err := d.UpdateFields("vim", "9.2.0", "01/06/2024"); err != nil {
		t.Fatalf("UpdateFields() failed: %v", err)
	}

	rec, err := d.Record("vim")
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if rec.Version != "9.2.0" {
		t.Errorf("Version = %s, want 9.2.0", rec.Version)
	}
	if rec.UpdateTime != "01/06/2024" {
		t.Errorf("UpdateTime = %s, want 01/06/2024", rec.UpdateTime)
	}

	// The other record must be untouched.
	htop, err := d.Record("htop")
	if err != nil {
		t.Fatalf("Record(htop) failed: %v", err)
	}
	if htop.Version != "9.1.0" || htop.UpdateTime != "12/03/2024" {
		t.Errorf("htop record changed: %+v", htop)
	}
}

func TestUpdateFields_MissingField(t *testing.T) {
	d := newTestDB(t)
	rec := Record{Name: "glibc", Version: "2.39", BuildDate: "01/02/2024"}
	if err := d.Append(rec); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	err := d.UpdateFields("glibc", "2.40", "01/06/2024")
	if !errors.Is(err, ErrFieldMissing) {
		t.Errorf("UpdateFields() error = %v, want ErrFieldMissing", err)
	}

	// Database must be untouched on failure.
	got, err := d.Record("glibc")
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if got.Version != "2.39" {
		t.Errorf("Version = %s, want 2.39 (unchanged)", got.Version)
	}
}

func TestUpdateTimeOf_BuildDateFallback(t *testing.T) {
	d := newTestDB(t)
	if err := d.Append(Record{Name: "glibc", Version: "2.39", BuildDate: "01/02/2024"}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := d.Append(vimRecord()); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	got, err := d.UpdateTimeOf("glibc")
	if err != nil {
		t.Fatalf("UpdateTimeOf() failed: %v", err)
	}
	if got != "01/02/2024" {
		t.Errorf("UpdateTimeOf(glibc) = %s, want the build date", got)
	}

	got, err = d.UpdateTimeOf("vim")
	if err != nil {
		t.Fatalf("UpdateTimeOf() failed: %v", err)
	}
	if got != "12/03/2024" {
		t.Errorf("UpdateTimeOf(vim) = %s, want the update time", got)
	}
}

func TestVersionOf(t *testing.T) {
	d := newTestDB(t)
	if err := d.Append(vimRecord()); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	v, err := d.VersionOf("vim")
	if err != nil {
		t.Fatalf("VersionOf() failed: %v", err)
	}
	if v != "9.1.0" {
		t.Errorf("VersionOf() = %s, want 9.1.0", v)
	}
}

func TestReverseDependencies(t *testing.T) {
	d := newTestDB(t)
	recs := []Record{
		{Name: "ncurses", Version: "6.4", UpdateTime: "01/01/2024", Files: []string{"/usr/lib/libncursesw.so.6"}},
		{Name: "vim", Version: "9.1.0", UpdateTime: "01/01/2024", Files: []string{"/usr/bin/vim"}, Dependencies: []string{"ncurses >= 6.0", "glibc"}},
		{Name: "htop", Version: "3.2.2", UpdateTime: "01/01/2024", Files: []string{"/usr/bin/htop"}, Dependencies: []string{"ncurses"}},
		{Name: "bash", Version: "5.2", UpdateTime: "01/01/2024", Files: []string{"/usr/bin/bash"}, Dependencies: []string{"glibc"}},
	}
	for _, rec := range recs {
		if err := d.Append(rec); err != nil {
			t.Fatalf("Append(%s) failed: %v", rec.Name, err)
		}
	}

	got, err := d.ReverseDependencies("ncurses")
	if err != nil {
		t.Fatalf("ReverseDependencies() failed: %v", err)
	}
	want := []string{"vim", "htop"}
	if len(got) != len(want) {
		t.Fatalf("ReverseDependencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReverseDependencies()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOrphans(t *testing.T) {
	d := newTestDB(t)
	recs := []Record{
		{Name: "ncurses", Version: "6.4", UpdateTime: "01/01/2024", Files: []string{"/usr/lib/libncursesw.so.6"}},
		{Name: "zlib", Version: "1.3", UpdateTime: "01/01/2024", Files: []string{"/usr/lib/libz.so.1"}},
		{Name: "vim", Version: "9.1.0", UpdateTime: "01/01/2024", Files: []string{"/usr/bin/vim"}, Dependencies: []string{"ncurses", "zlib"}},
		{Name: "htop", Version: "3.2.2", UpdateTime: "01/01/2024", Files: []string{"/usr/bin/htop"}, Dependencies: []string{"ncurses"}},
	}
	for _, rec := range recs {
		if err := d.Append(rec); err != nil {
			t.Fatalf("Append(%s) failed: %v", rec.Name, err)
		}
	}

	// Removing vim: zlib loses its only dependent, ncurses is still
	// needed by htop.
	exclude := map[string]bool{"vim": true}
	got, err := d.Orphans([]string{"ncurses", "zlib"}, exclude)
	if err != nil {
		t.Fatalf("Orphans() failed: %v", err)
	}
	if len(got) != 1 || got[0] != "zlib" {
		t.Errorf("Orphans() = %v, want [zlib]", got)
	}
}

func TestOrphans_SkipsNotInstalledAndExcluded(t *testing.T) {
	d := newTestDB(t)
	if err := d.Append(Record{Name: "zlib", Version: "1.3", UpdateTime: "01/01/2024", Files: []string{"/usr/lib/libz.so.1"}}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	got, err := d.Orphans([]string{"zlib", "ghost", "zlib"}, map[string]bool{})
	if err != nil {
		t.Fatalf("Orphans() failed: %v", err)
	}
	if len(got) != 1 || got[0] != "zlib" {
		t.Errorf("Orphans() = %v, want [zlib] once, ghost skipped", got)
	}
}
