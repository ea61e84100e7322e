package file

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const zipMIME = "application/zip"

// IsZip sniffs the content of path rather than trusting its extension.
// Zip based formats such as jar or docx count as zip.
func IsZip(path string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(zipMIME) {
			return true, nil
		}
	}
	return false, nil
}

// ReadZipEntry returns the content and name of the first entry in the archive
// for which match returns true. found is false when nothing matches.
func ReadZipEntry(archivePath string, match func(name string) bool) (content []byte, name string, found bool, err error) {
	zipReader, err := zip.OpenReader(archivePath)
	if err != nil {
		slog.Error("failed to open ZIP archive", "path", archivePath, "error", err)
		return nil, "", false, fmt.Errorf("failed to open ZIP archive %s: %w", archivePath, err)
	}
	defer zipReader.Close()

	for _, f := range zipReader.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to open %s in ZIP: %w", f.Name, err)
		}
		content, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to read %s in ZIP: %w", f.Name, err)
		}
		return content, f.Name, true, nil
	}
	return nil, "", false, nil
}

// ZipEntries lists the names of the files in the archive.
func ZipEntries(archivePath string) ([]string, error) {
	zipReader, err := zip.OpenReader(archivePath)
	if err != nil {
		slog.Error("failed to open ZIP archive", "path", archivePath, "error", err)
		return nil, fmt.Errorf("failed to open ZIP archive %s: %w", archivePath, err)
	}
	defer zipReader.Close()

	names := make([]string, 0, len(zipReader.File))
	for _, f := range zipReader.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

// ExtractZip unpacks the archive into destDir and returns the paths of the
// extracted files. Entries that would land outside destDir are rejected.
func ExtractZip(archivePath, destDir string) ([]string, error) {
	zipReader, err := zip.OpenReader(archivePath)
	if err != nil {
		slog.Error("failed to open ZIP archive", "path", archivePath, "error", err)
		return nil, fmt.Errorf("failed to open ZIP archive %s: %w", archivePath, err)
	}
	defer zipReader.Close()
	slog.Debug("extracting ZIP archive", "path", archivePath, "file_count", len(zipReader.File))

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}

	var extracted []string
	for _, f := range zipReader.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			slog.Error("ZIP entry escapes destination", "entry", f.Name, "dest", root)
			return extracted, fmt.Errorf("ZIP entry %q escapes %s", f.Name, root)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extracted, fmt.Errorf("failed to create %s: %w", target, err)
			}
			continue
		}
		if err := extractEntry(f, target); err != nil {
			slog.Error("failed to extract ZIP entry", "entry", f.Name, "error", err)
			return extracted, err
		}
		extracted = append(extracted, target)
	}

	slog.Debug("ZIP archive extracted", "path", archivePath, "dest", root, "files", len(extracted))
	return extracted, nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in ZIP: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}
