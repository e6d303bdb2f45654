package profile

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Decode reads one or more YAML documents, each holding a single profile,
// and validates them. Unknown keys are rejected so typos fail at startup.
func Decode(r io.Reader) ([]*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []*Profile
	for {
		var p Profile
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, nil
}

// LoadFile reads profiles from a YAML file.
func LoadFile(path string) ([]*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ps, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// LoadDir reads every *.yaml and *.yml file of dir in lexical order.
func LoadDir(dir string) ([]*Profile, error) {
	return loadFS(os.DirFS(dir), ".")
}

// Builtin returns freshly decoded copies of the embedded profiles.
func Builtin() ([]*Profile, error) {
	return loadFS(builtinFS, "builtin")
}

func loadFS(fsys fs.FS, dir string) ([]*Profile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var out []*Profile
	for _, name := range names {
		f, err := fsys.Open(pathJoin(dir, name))
		if err != nil {
			return nil, err
		}
		ps, err := Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, ps...)
	}
	return out, nil
}

func pathJoin(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}
