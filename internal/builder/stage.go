package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Stage copies artifact to dst iff dst is absent or strictly older than the
// artifact, creating parent directories as needed. The copy carries the
// artifact's modification time so downstream mtime comparisons stay valid,
// and goes through a uniquely named temp file renamed into place, so a
// failed copy never clobbers a previously valid deployment file. Returns
// whether a copy was performed.
func Stage(artifact, dst string) (bool, error) {
	srcInfo, err := os.Stat(artifact)
	if err != nil {
		return false, fmt.Errorf("stage %s: %w", artifact, err)
	}

	if dstInfo, err := os.Stat(dst); err == nil {
		if !dstInfo.ModTime().Before(srcInfo.ModTime()) {
			return false, nil
		}
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stage %s: %w", dst, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("stage %s: %w", dst, err)
	}

	tmp := dst + "." + uuid.NewString() + ".tmp"
	if err := copyWithModTime(artifact, tmp, srcInfo); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("stage %s -> %s: %w", artifact, dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("stage %s -> %s: %w", artifact, dst, err)
	}

	return true, nil
}

func copyWithModTime(src, dst string, srcInfo os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	_, cerr := io.Copy(out, in)
	if err := out.Close(); cerr == nil {
		cerr = err
	}
	if cerr != nil {
		return cerr
	}

	return os.Chtimes(dst, time.Now(), srcInfo.ModTime())
}
