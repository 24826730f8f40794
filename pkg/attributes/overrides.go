package attributes

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/filesystem"
	"github.com/tidwall/jsonc"
)

// OverrideExt is the extension of attribute override files
const OverrideExt = ".jsonc"

// Overrides are attribute layers read from a directory:
//
//	global.jsonc
//	roles/<role>.jsonc
//	hosts/<host>.jsonc
//
// Role files hold role default attributes.
type Overrides struct {
	Global *Document
	Roles  map[string]*Document
	Hosts  map[string]*Document
}

// LoadOverrides reads dir. A missing dir yields empty overrides.
func LoadOverrides(fsys filesystem.FS, dir string) (*Overrides, error) {
	o := &Overrides{Roles: map[string]*Document{}, Hosts: map[string]*Document{}}
	if dir == "" {
		return o, nil
	}
	if _, err := fsys.Stat(dir); os.IsNotExist(err) {
		return o, nil
	}

	global := filepath.Join(dir, "global"+OverrideExt)
	if _, err := fsys.Stat(global); err == nil {
		doc, err := readJSONC(fsys, global)
		if err != nil {
			return nil, err
		}
		o.Global = doc
	}

	var err error
	if o.Roles, err = readLayer(fsys, filepath.Join(dir, "roles")); err != nil {
		return nil, err
	}
	if o.Hosts, err = readLayer(fsys, filepath.Join(dir, "hosts")); err != nil {
		return nil, err
	}
	return o, nil
}

func readLayer(fsys filesystem.FS, dir string) (map[string]*Document, error) {
	docs := map[string]*Document{}
	entries, err := fsys.ReadDir(dir)
	if os.IsNotExist(err) {
		return docs, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrAttributes, "failed to read %s", dir).WithDetail("path", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), OverrideExt) {
			continue
		}
		doc, err := readJSONC(fsys, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs[strings.TrimSuffix(entry.Name(), OverrideExt)] = doc
	}
	return docs, nil
}

func readJSONC(fsys filesystem.FS, path string) (*Document, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrAttributes, "failed to read %s", path).WithDetail("path", path)
	}
	doc := NewDocument()
	if err := doc.UnmarshalJSON(jsonc.ToJSON(data)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrAttributes, "invalid attribute file %s", path).WithDetail("path", path)
	}
	return doc, nil
}
