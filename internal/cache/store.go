package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func dirPerm(strict bool) os.FileMode {
	if strict {
		return 0o700
	}
	return 0o755
}

func filePerm(strict bool) os.FileMode {
	if strict {
		return 0o600
	}
	return 0o644
}

// ensureDir creates dir and, in strict mode, tightens a pre-existing one.
func ensureDir(dir string, strict bool) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("cache dir not configured")
	}
	if err := os.MkdirAll(dir, dirPerm(strict)); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			return os.Chmod(dir, 0o700)
		}
	}
	return nil
}

// digest hashes the parts with a separator that cannot occur in URLs or
// model names.
func digest(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

// writeFileAtomic writes through a temp file in the same directory so that
// readers never see a partial entry.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
