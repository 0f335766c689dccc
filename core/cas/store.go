// Package cas keeps downloaded translation sources in a content-addressed
// blob store. Blobs are addressed by SHA-256; a BLAKE3 pointer and an
// optional named ref (usually the source id) resolve to the same blob.
//
// Layout under the root:
//
//	blobs/sha256/<2>/<sha256>
//	blobs/blake3/<2>/<blake3>.json   {"sha256": "..."}
//	refs/<name>                      <sha256>
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

var (
	hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
	refPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Digest holds both hashes of a stored blob.
type Digest struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

type blake3Pointer struct {
	SHA256 string `json:"sha256"`
}

// Store is a content-addressed blob store on disk.
type Store struct {
	root string
}

// NewStore creates the directory layout under root if needed.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{"blobs/sha256", "blobs/blake3", "refs"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, errors.NewIO("create", filepath.Join(root, dir), err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Put stores data and its BLAKE3 pointer. Storing the same bytes twice is a
// no-op.
func (s *Store) Put(data []byte) (Digest, error) {
	d := Digest{SHA256: SHA256(data), BLAKE3: BLAKE3(data)}

	blobPath := s.blobPath(d.SHA256)
	if _, err := os.Stat(blobPath); err != nil {
		if err := writeAtomic(blobPath, data); err != nil {
			return Digest{}, err
		}
	}

	ptrPath := s.pointerPath(d.BLAKE3)
	if _, err := os.Stat(ptrPath); err != nil {
		ptr, _ := json.Marshal(blake3Pointer{SHA256: d.SHA256})
		if err := writeAtomic(ptrPath, ptr); err != nil {
			return Digest{}, err
		}
	}
	return d, nil
}

// Get returns the blob with the given SHA-256.
func (s *Store) Get(sha string) ([]byte, error) {
	if !hashPattern.MatchString(sha) {
		return nil, errors.NewValidation("sha256", "invalid hash "+sha)
	}
	data, err := os.ReadFile(s.blobPath(sha))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("blob", sha)
	}
	if err != nil {
		return nil, errors.NewIO("read", s.blobPath(sha), err)
	}
	return data, nil
}

// Has reports whether a blob with the given SHA-256 exists.
func (s *Store) Has(sha string) bool {
	if !hashPattern.MatchString(sha) {
		return false
	}
	_, err := os.Stat(s.blobPath(sha))
	return err == nil
}

// LookupBLAKE3 maps a BLAKE3 hash to the SHA-256 of the same blob.
func (s *Store) LookupBLAKE3(b3 string) (string, error) {
	if !hashPattern.MatchString(b3) {
		return "", errors.NewValidation("blake3", "invalid hash "+b3)
	}
	raw, err := os.ReadFile(s.pointerPath(b3))
	if os.IsNotExist(err) {
		return "", errors.NewNotFound("blake3 pointer", b3)
	}
	if err != nil {
		return "", errors.NewIO("read", s.pointerPath(b3), err)
	}
	var ptr blake3Pointer
	if err := json.Unmarshal(raw, &ptr); err != nil {
		return "", &errors.ParseError{Format: "json", Path: s.pointerPath(b3), Message: "blake3 pointer", Err: err}
	}
	return ptr.SHA256, nil
}

// GetBLAKE3 returns the blob with the given BLAKE3 hash.
func (s *Store) GetBLAKE3(b3 string) ([]byte, error) {
	sha, err := s.LookupBLAKE3(b3)
	if err != nil {
		return nil, err
	}
	return s.Get(sha)
}

// SetRef points name at a stored blob.
func (s *Store) SetRef(name, sha string) error {
	if !refPattern.MatchString(name) {
		return errors.NewValidation("ref", "invalid ref name "+name)
	}
	if !s.Has(sha) {
		return errors.NewNotFound("blob", sha)
	}
	return writeAtomic(filepath.Join(s.root, "refs", name), []byte(sha+"\n"))
}

// Ref resolves a named ref to its blob.
func (s *Store) Ref(name string) ([]byte, Digest, error) {
	if !refPattern.MatchString(name) {
		return nil, Digest{}, errors.NewValidation("ref", "invalid ref name "+name)
	}
	raw, err := os.ReadFile(filepath.Join(s.root, "refs", name))
	if os.IsNotExist(err) {
		return nil, Digest{}, errors.NewNotFound("ref", name)
	}
	if err != nil {
		return nil, Digest{}, errors.NewIO("read ref", name, err)
	}
	sha := strings.TrimSpace(string(raw))
	data, err := s.Get(sha)
	if err != nil {
		return nil, Digest{}, err
	}
	return data, Digest{SHA256: sha, BLAKE3: BLAKE3(data)}, nil
}

func (s *Store) blobPath(sha string) string {
	return filepath.Join(s.root, "blobs", "sha256", sha[:2], sha)
}

func (s *Store) pointerPath(b3 string) string {
	return filepath.Join(s.root, "blobs", "blake3", b3[:2], b3+".json")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIO("create", dir, err)
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.NewIO("create temp file in", dir, err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return errors.NewIO("write", tempPath, err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return errors.NewIO("close", tempPath, err)
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.NewIO("rename", path, err)
	}
	return nil
}

// SHA256 returns the hex SHA-256 of data.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// BLAKE3 returns the hex BLAKE3-256 of data.
func BLAKE3(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
