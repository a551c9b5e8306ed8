package workspace

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_DefaultLayout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/packages/b/package.json", `{"name":"b","version":"1.0.0","dependencies":{"a":"^1.0.0","lodash":"^4"}}`)
	writeFile(t, fsys, "/ws/packages/a/package.json", `{"name":"a","version":"1.0.0","scripts":{"build":"tsc"}}`)
	writeFile(t, fsys, "/ws/packages/c/package.json", `{"name":"c","devDependencies":{"b":"*"},"peerDependencies":{"a":"*"}}`)
	writeFile(t, fsys, "/ws/packages/not-a-package/README.md", "hello")

	pkgs, err := Load(fsys, "/ws")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := Names(pkgs); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected packages [a b c], got %v", got)
	}

	if !pkgs[0].HasScript("build") {
		t.Error("expected a to have a build script")
	}
	if got := pkgs[1].Dependencies; !slices.Equal(got, []string{"a"}) {
		t.Errorf("expected b to depend on [a] only, got %v", got)
	}
	if got := pkgs[2].Dependencies; !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("expected c to depend on [a b], got %v", got)
	}
	if pkgs[1].Location != "/ws/packages/b" {
		t.Errorf("unexpected location %q", pkgs[1].Location)
	}
}

func TestLoad_ManifestGlobs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/workspace.yaml", "packages:\n  - apps/*\n  - libs/*\n")
	writeFile(t, fsys, "/ws/apps/web/package.json", `{"name":"web","dependencies":{"ui":"*"}}`)
	writeFile(t, fsys, "/ws/libs/ui/package.json", `{"name":"ui"}`)
	writeFile(t, fsys, "/ws/packages/ignored/package.json", `{"name":"ignored"}`)

	pkgs, err := Load(fsys, "/ws")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := Names(pkgs); !slices.Equal(got, []string{"ui", "web"}) {
		t.Fatalf("expected [ui web], got %v", got)
	}
	if !pkgs[1].DependsOn("ui") {
		t.Error("expected web to depend on ui")
	}
}

func TestLoad_DuplicateName(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/packages/one/package.json", `{"name":"same"}`)
	writeFile(t, fsys, "/ws/packages/two/package.json", `{"name":"same"}`)

	_, err := Load(fsys, "/ws")
	if !errors.Is(err, ErrDuplicatePackage) {
		t.Fatalf("expected ErrDuplicatePackage, got %v", err)
	}
}

func TestLoad_InvalidPackageJSON(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/packages/broken/package.json", `{"name":`)

	if _, err := Load(fsys, "/ws"); err == nil {
		t.Fatal("expected a decode error, got nil")
	}
}

func TestReadManifest_Empty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/workspace.yaml", "\n")

	m, err := ReadManifest(fsys, "/ws")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(m.Packages, []string{DefaultPackageGlob}) {
		t.Errorf("expected default glob, got %v", m.Packages)
	}
}

func TestFilter(t *testing.T) {
	pkgs := []Package{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	if got := Names(Filter(pkgs)); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("expected no filtering without names, got %v", got)
	}
	if got := Names(Filter(pkgs, "c", "a")); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("expected [a c] in input order, got %v", got)
	}
}
