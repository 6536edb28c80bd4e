package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the current Lattice version.
// Set at build time via -ldflags or by writing to this file.
var Version = "0.3.1"

const SourceFileExt = ".lat"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".lat", ".lattice"}

// TrimSourceExt removes any recognized source extension from a filename.
// Returns the original string if no extension matches.
func TrimSourceExt(name string) string {
	for _, ext := range SourceFileExtensions {
		if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// HasSourceExt returns true if the path ends with any recognized source extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// ProjectFileName is looked up in the working directory before flags are applied.
const ProjectFileName = "lattice.yaml"

// Project holds per-directory defaults. Flags given on the command line
// override any value set here.
type Project struct {
	Output string `yaml:"output"`
	Level  string `yaml:"level"` // lex | parse | ast | ir | asm
	Silent bool   `yaml:"silent"`
}

// LoadProject reads a project file. A missing file is not an error and
// yields the zero Project.
func LoadProject(path string) (Project, error) {
	var p Project
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}
