package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gurre/xdgapp-deploy/adaptor/keyfile"
)

const sampleDesktopSource = `[Desktop Entry]
Type=Application
Name=Hello
Exec=hello --flag foo
TryExec=/usr/bin/hello
`

func TestRewriteDesktopFileProducesSandboxedExec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "com.example.Hello.desktop")
	if err := os.WriteFile(path, []byte(sampleDesktopSource), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer()
	if err := tr.rewriteDesktopFile(path, "com.example.Hello", "stable", "x86_64"); err != nil {
		t.Fatalf("rewriteDesktopFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfile.Load(data)
	if err != nil {
		t.Fatal(err)
	}

	exec, ok := kf.Get("Desktop Entry", "Exec")
	if !ok {
		t.Fatal("Exec missing after rewrite")
	}
	want := "/usr/bin/xdg-app run --branch='stable' --arch='x86_64' --command='hello' 'com.example.Hello' '--flag' 'foo'"
	if exec != want {
		t.Errorf("Exec = %q, want %q", exec, want)
	}
	if _, ok := kf.Get("Desktop Entry", "TryExec"); ok {
		t.Error("TryExec should have been removed")
	}
}

func TestRewriteDesktopFileIsFixedPoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "com.example.Hello.desktop")
	if err := os.WriteFile(path, []byte(sampleDesktopSource), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer()
	if err := tr.rewriteDesktopFile(path, "com.example.Hello", "stable", "x86_64"); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := tr.rewriteDesktopFile(path, "com.example.Hello", "stable", "x86_64"); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("rewrite is not a fixed point:\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestRewriteServiceFileValidatesName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "com.example.Hello.service")
	content := "[D-BUS Service]\nName=com.example.Wrong\nExec=/usr/bin/hello\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer()
	err := tr.rewriteDesktopFile(path, "com.example.Hello", "stable", "x86_64")
	if err == nil {
		t.Fatal("expected validation error for mismatched D-Bus service name")
	}
	if !strings.Contains(err.Error(), "wrong name") {
		t.Errorf("error = %v", err)
	}
}

func TestRewriteServiceFileAcceptsMatchingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "com.example.Hello.service")
	content := "[D-BUS Service]\nName=com.example.Hello\nExec=/usr/bin/hello\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer()
	if err := tr.rewriteDesktopFile(path, "com.example.Hello", "stable", "x86_64"); err != nil {
		t.Fatalf("rewriteDesktopFile: %v", err)
	}
}
