package project

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/formlio/forml/internal/core/domain"
)

const (
	// ManifestFile is the manifest entry at the root of every package.
	ManifestFile = "manifest.toml"

	// DescriptorFile is the project definition at the root of every
	// project tree.
	DescriptorFile = "project.toml"
)

// manifestFile is the TOML shape of a package manifest.
type manifestFile struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ReadManifest loads and validates the manifest of a package path -
// either an unpacked directory or a .4ml archive.
func ReadManifest(path string) (domain.Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("reading package: %w", err)
	}
	var raw []byte
	if info.IsDir() {
		raw, err = os.ReadFile(filepath.Join(path, ManifestFile))
		if err != nil {
			if os.IsNotExist(err) {
				return domain.Manifest{}, fmt.Errorf("%w: no %s in %s", domain.ErrInvalidManifest, ManifestFile, path)
			}
			return domain.Manifest{}, fmt.Errorf("reading manifest: %w", err)
		}
	} else {
		raw, err = readArchiveEntry(path, ManifestFile)
		if err != nil {
			return domain.Manifest{}, err
		}
	}
	return parseManifest(raw)
}

// WriteManifest stores the manifest into a project directory.
func WriteManifest(dir string, manifest domain.Manifest) error {
	raw, err := marshalManifest(manifest)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), raw, 0o600)
}

func marshalManifest(manifest domain.Manifest) ([]byte, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	raw, err := toml.Marshal(manifestFile{Name: manifest.Name.String(), Version: manifest.Version.String()})
	if err != nil {
		return nil, fmt.Errorf("serializing manifest: %w", err)
	}
	return raw, nil
}

func parseManifest(raw []byte) (domain.Manifest, error) {
	var file manifestFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}
	name, err := domain.ParseProject(file.Name)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: name %q", domain.ErrInvalidManifest, file.Name)
	}
	version, err := domain.ParseVersion(file.Version)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: version %q", domain.ErrInvalidManifest, file.Version)
	}
	manifest := domain.Manifest{Name: name, Version: version}
	if err := manifest.Validate(); err != nil {
		return domain.Manifest{}, err
	}
	return manifest, nil
}

func readArchiveEntry(path, name string) ([]byte, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: not a package archive: %v", domain.ErrInvalidManifest, err)
	}
	defer archive.Close()

	entry, err := archive.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s entry", domain.ErrInvalidManifest, name)
	}
	defer entry.Close()
	raw, err := io.ReadAll(entry)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return raw, nil
}
