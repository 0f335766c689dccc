package cas

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

func TestPutGet(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	data := []byte(`"Verse ID","Book Name"`)
	d, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if d.SHA256 != SHA256(data) || d.BLAKE3 != BLAKE3(data) {
		t.Errorf("digest = %+v", d)
	}

	again, err := s.Put(data)
	if err != nil || again != d {
		t.Errorf("second Put = %+v, %v; want %+v", again, err, d)
	}

	got, err := s.Get(d.SHA256)
	if err != nil || string(got) != string(data) {
		t.Errorf("Get = %q, %v", got, err)
	}
	if !s.Has(d.SHA256) {
		t.Error("Has = false after Put")
	}

	got, err = s.GetBLAKE3(d.BLAKE3)
	if err != nil || string(got) != string(data) {
		t.Errorf("GetBLAKE3 = %q, %v", got, err)
	}
}

func TestKnownHashes(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]byte) string
		want string
	}{
		{"sha256", SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"blake3", BLAKE3, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}
	for _, tt := range tests {
		if got := tt.fn(nil); got != tt.want {
			t.Errorf("%s(empty) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestLookupErrors(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	missing := SHA256([]byte("missing"))

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"get invalid", func() error { _, err := s.Get("xyz"); return err }(), errors.ErrInvalidInput},
		{"get missing", func() error { _, err := s.Get(missing); return err }(), errors.ErrNotFound},
		{"blake3 invalid", func() error { _, err := s.LookupBLAKE3("ABC"); return err }(), errors.ErrInvalidInput},
		{"blake3 missing", func() error { _, err := s.GetBLAKE3(missing); return err }(), errors.ErrNotFound},
		{"ref missing", func() error { _, _, err := s.Ref("elb1905"); return err }(), errors.ErrNotFound},
		{"ref invalid", func() error { _, _, err := s.Ref("../etc"); return err }(), errors.ErrInvalidInput},
		{"set ref unknown blob", s.SetRef("elb1905", missing), errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("got %v, want %v", tt.err, tt.target)
			}
		})
	}
	if s.Has("not-a-hash") {
		t.Error("Has(invalid) = true")
	}
}

func TestRefs(t *testing.T) {
	s, _ := NewStore(t.TempDir())

	v1, _ := s.Put([]byte("v1"))
	v2, _ := s.Put([]byte("v2"))

	if err := s.SetRef("lut1912", v1.SHA256); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
	if err := s.SetRef("lut1912", v2.SHA256); err != nil {
		t.Fatalf("SetRef: %v", err)
	}

	data, d, err := s.Ref("lut1912")
	if err != nil {
		t.Fatalf("Ref: %v", err)
	}
	if string(data) != "v2" || d != v2 {
		t.Errorf("Ref = %q %+v, want v2 %+v", data, d, v2)
	}
}

func TestPutRenameFailure(t *testing.T) {
	orig := osRename
	osRename = func(string, string) error { return fmt.Errorf("read-only file system") }
	defer func() { osRename = orig }()

	root := t.TempDir()
	s, _ := NewStore(root)
	_, err := s.Put([]byte("data"))

	var ioe *errors.IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected IOError, got %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(root, "blobs", "sha256", "*", ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestPutWriteFailure(t *testing.T) {
	orig := tempFileWrite
	tempFileWrite = func(*os.File, []byte) (int, error) { return 0, fmt.Errorf("disk full") }
	defer func() { tempFileWrite = orig }()

	s, _ := NewStore(t.TempDir())
	if _, err := s.Put([]byte("data")); err == nil {
		t.Fatal("expected error")
	}
	if s.Has(SHA256([]byte("data"))) {
		t.Error("blob stored despite write failure")
	}
}
