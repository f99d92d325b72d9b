package project

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/logger"
)

// Open reads the manifest of an existing package path.
func Open(path string) (domain.Package, error) {
	manifest, err := ReadManifest(path)
	if err != nil {
		return domain.Package{}, err
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return domain.Package{}, fmt.Errorf("resolving package path: %w", err)
	}
	return domain.Package{Path: absolute, Manifest: manifest}, nil
}

// Create archives the source tree into a .4ml package at target,
// embedding the given manifest (replacing any manifest.toml present in
// the tree).
func Create(source string, manifest domain.Manifest, target string) (domain.Package, error) {
	if err := manifest.Validate(); err != nil {
		return domain.Package{}, err
	}
	out, err := os.Create(target)
	if err != nil {
		return domain.Package{}, fmt.Errorf("creating package: %w", err)
	}
	defer out.Close()

	archive := zip.NewWriter(out)
	raw, err := marshalManifest(manifest)
	if err != nil {
		return domain.Package{}, err
	}
	entry, err := archive.Create(ManifestFile)
	if err != nil {
		return domain.Package{}, fmt.Errorf("creating manifest entry: %w", err)
	}
	if _, err := entry.Write(raw); err != nil {
		return domain.Package{}, fmt.Errorf("writing manifest entry: %w", err)
	}

	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if relative == ManifestFile {
			return nil
		}
		entry, err := archive.Create(filepath.ToSlash(relative))
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(entry, file)
		return err
	})
	if walkErr != nil {
		return domain.Package{}, fmt.Errorf("archiving %s: %w", source, walkErr)
	}
	if err := archive.Close(); err != nil {
		return domain.Package{}, fmt.Errorf("finalizing package: %w", err)
	}
	return Open(target)
}

// Install materializes the package into the target directory and
// returns the installed root. Installing over a matching manifest is a
// no-op; anything else at the target is replaced.
func Install(pkg domain.Package, target string) (string, error) {
	if existing, err := ReadManifest(target); err == nil &&
		existing.Name == pkg.Manifest.Name &&
		existing.Version.Compare(pkg.Manifest.Version) == 0 {
		logger.Debug("package %s already installed at %s", pkg.Manifest, target)
		return target, nil
	}
	if _, err := os.Stat(target); err == nil {
		logger.Warn("replacing existing content at %s", target)
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("pruning install target: %w", err)
		}
	}
	if err := os.MkdirAll(target, 0o700); err != nil {
		return "", fmt.Errorf("creating install target: %w", err)
	}

	info, err := os.Stat(pkg.Path)
	if err != nil {
		return "", fmt.Errorf("reading package: %w", err)
	}
	if info.IsDir() {
		if err := copyTree(pkg.Path, target); err != nil {
			return "", err
		}
		return target, nil
	}
	if err := extract(pkg.Path, target); err != nil {
		return "", err
	}
	return target, nil
}

func copyTree(source, target string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		destination := filepath.Join(target, relative)
		if d.IsDir() {
			return os.MkdirAll(destination, 0o700)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(destination, raw, 0o600)
	})
}

func extract(archivePath, target string) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening package: %w", err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		name := filepath.FromSlash(entry.Name)
		if strings.Contains(name, "..") {
			return fmt.Errorf("%w: suspicious entry %q", domain.ErrInvalidManifest, entry.Name)
		}
		destination := filepath.Join(target, name)
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(destination, 0o700); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destination), 0o700); err != nil {
			return err
		}
		reader, err := entry.Open()
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return err
		}
		if err := os.WriteFile(destination, raw, 0o600); err != nil {
			return err
		}
	}
	return nil
}
