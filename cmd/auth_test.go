package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/faceauth/internal/fingerprint"
	"github.com/kozaktomas/faceauth/internal/identity"
	"github.com/kozaktomas/faceauth/internal/matcher"
)

type fakeExtractor struct {
	embedding []float32
	err       error
}

func (f *fakeExtractor) ExtractFace(ctx context.Context, imageData []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func newTestAuthenticator(t *testing.T, store string, ext faceExtractor, input string) (*authenticator, *bytes.Buffer) {
	t.Helper()
	repo := identity.New(store, identity.Options{})
	m := matcher.New(repo, fingerprint.EuclideanTolerance(0.6))
	out := &bytes.Buffer{}
	return &authenticator{
		matcher:   m,
		extractor: ext,
		maxSize:   64,
		out:       out,
		in:        bufio.NewReader(strings.NewReader(input)),
	}, out
}

func TestAuthenticate_EnrollThenGrant(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "persist")
	img := filepath.Join(dir, "face.png")
	writePNG(t, img)
	ext := &fakeExtractor{embedding: []float32{0.1, 0.2, 0.3, 0.4}}

	// First run: store absent, nothing to match.
	a, out := newTestAuthenticator(t, store, ext, "")
	if err := a.authenticate(context.Background(), img); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !strings.Contains(out.String(), "---- Access Denied! ----") {
		t.Errorf("expected denial, got %q", out.String())
	}

	// Enroll through the prompt.
	a, out = newTestAuthenticator(t, store, ext, "Alice Smith\n")
	a.autosave = true
	a.showID = true
	if err := a.authenticate(context.Background(), img); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	for _, want := range []string{"Saving new user...", "Enter username:", "Username: Alice Smith", "Unique Identifier: "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	refs, err := identity.New(store, identity.Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].DisplayName != "Alice Smith" {
		t.Fatalf("refs = %+v, want one record for Alice Smith", refs)
	}

	// The same face is now granted.
	a, out = newTestAuthenticator(t, store, ext, "")
	a.showID = true
	if err := a.authenticate(context.Background(), img); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !strings.Contains(out.String(), "---- Access Granted ----") {
		t.Errorf("expected grant, got %q", out.String())
	}
	if !strings.Contains(out.String(), "Unique Identifier: "+refs[0].ID.String()) {
		t.Errorf("expected id %s in output %q", refs[0].ID, out.String())
	}
}

func TestAuthenticate_DefaultUsername(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "face.png")
	writePNG(t, img)

	a, _ := newTestAuthenticator(t, filepath.Join(dir, "persist"), &fakeExtractor{embedding: []float32{1, 2}}, "\n")
	a.autosave = true
	if err := a.authenticate(context.Background(), img); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	refs, err := identity.New(filepath.Join(dir, "persist"), identity.Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].DisplayName != "No username" {
		t.Fatalf("refs = %+v, want one record named %q", refs, "No username")
	}
}

func TestAuthenticate_RepromptsInvalidName(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "face.png")
	writePNG(t, img)

	a, out := newTestAuthenticator(t, filepath.Join(dir, "persist"), &fakeExtractor{embedding: []float32{1, 2}}, "bad_name\nBob\n")
	a.autosave = true
	if err := a.authenticate(context.Background(), img); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if strings.Count(out.String(), "Enter username:") != 2 {
		t.Errorf("expected two prompts, got %q", out.String())
	}

	refs, err := identity.New(filepath.Join(dir, "persist"), identity.Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].DisplayName != "Bob" {
		t.Fatalf("refs = %+v, want one record for Bob", refs)
	}
}

func TestAuthenticate_UnprocessableInputs(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "face.png")
	writePNG(t, img)
	notImage := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(notImage, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		ext  faceExtractor
		want string
	}{
		{
			name: "no face",
			path: img,
			ext:  &fakeExtractor{err: fmt.Errorf("%w: no face detected", fingerprint.ErrExtractionFailed)},
			want: "Error : Face features cannot be extracted from this file.",
		},
		{
			name: "undecodable image",
			path: notImage,
			ext:  &fakeExtractor{embedding: []float32{1}},
			want: "Error : cannot process image.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := filepath.Join(t.TempDir(), "persist")
			a, out := newTestAuthenticator(t, store, tt.ext, "")
			a.autosave = true
			if err := a.authenticate(context.Background(), tt.path); err != nil {
				t.Fatalf("authenticate should not fail: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
			if _, err := os.Stat(store); !os.IsNotExist(err) {
				t.Errorf("store should not be touched, stat err = %v", err)
			}
		})
	}
}

func TestAuthenticateDir(t *testing.T) {
	dir := t.TempDir()
	images := filepath.Join(dir, "images")
	if err := os.Mkdir(images, 0o750); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(images, "b.png"))
	writePNG(t, filepath.Join(images, "a.png"))
	if err := os.WriteFile(filepath.Join(images, "readme.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	a, out := newTestAuthenticator(t, filepath.Join(dir, "persist"), &fakeExtractor{embedding: []float32{1, 2}}, "")
	a.autosave = true
	a.name = "Carol"
	if err := a.authenticateDir(context.Background(), images, &bytes.Buffer{}); err != nil {
		t.Fatalf("authenticateDir: %v", err)
	}

	got := out.String()
	first := strings.Index(got, "Using image: a.png")
	second := strings.Index(got, "Using image: b.png")
	if first < 0 || second < first {
		t.Fatalf("images not processed in order:\n%s", got)
	}
	// a.png enrolls Carol, b.png is the same face and is granted.
	if !strings.Contains(got[first:second], "Saving new user...") {
		t.Errorf("a.png should enroll:\n%s", got[first:second])
	}
	if !strings.Contains(got[second:], "---- Access Granted ----") {
		t.Errorf("b.png should be granted:\n%s", got[second:])
	}
}

func TestAuthenticateDir_Empty(t *testing.T) {
	dir := t.TempDir()
	a, out := newTestAuthenticator(t, filepath.Join(dir, "persist"), &fakeExtractor{}, "")
	if err := a.authenticateDir(context.Background(), dir, &bytes.Buffer{}); err != nil {
		t.Fatalf("authenticateDir: %v", err)
	}
	if !strings.Contains(out.String(), "Empty Directory!") {
		t.Errorf("output = %q", out.String())
	}
}

func TestAuthenticate_DecomposedNameIsStoredComposed(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "face.png")
	writePNG(t, img)
	store := filepath.Join(dir, "persist")

	a, _ := newTestAuthenticator(t, store, &fakeExtractor{embedding: []float32{1, 2}}, "Nova\u0301k\n")
	a.autosave = true
	if err := a.authenticate(context.Background(), img); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	refs, err := identity.New(store, identity.Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].DisplayName != "Nov\u00e1k" {
		t.Fatalf("refs = %+v, want one record named %q", refs, "Nov\u00e1k")
	}
}
