// Package shim locates and validates the SecureUxTheme payload the tool
// installs.
//
// The payload ships beside the themetool executable. Install copies it into
// the system directory under ImageName, and status compares the installed
// copy against it byte for byte.
package shim

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// ImageName is the file name of the shim both on disk and in VerifierDlls.
const ImageName = "SecureUxTheme.dll"

// ErrInvalidPayload is returned for a payload that is empty or not a PE image.
var ErrInvalidPayload = errors.New("invalid shim payload")

// executable is replaced in tests.
var executable = os.Executable

// Locate returns the path of the payload to install.
//
// Strategy (in order):
//  1. override, when set (from --payload or payload_path); it must exist.
//  2. ImageName in the directory of the running executable.
//  3. ImageName in the working directory.
func Locate(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("payload %s: %w", override, err)
		}
		return override, nil
	}

	var candidates []string
	if self, err := executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), ImageName))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, ImageName))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s not found next to the executable; use --payload to point at it", ImageName)
}

// Load reads the payload at path and checks that it looks like a PE image.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Validate rejects empty payloads and payloads without the "MZ" DOS header.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidPayload)
	}
	if !bytes.HasPrefix(data, []byte("MZ")) {
		return fmt.Errorf("%w: missing MZ header", ErrInvalidPayload)
	}
	return nil
}

// NewImage returns the image that installs payload into dir.
func NewImage(dir string, payload []byte) patcher.Image {
	return patcher.Image{Name: ImageName, Dir: dir, Payload: payload}
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
