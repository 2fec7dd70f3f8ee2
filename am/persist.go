package am

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Settings returns the effective configuration as a nested map keyed by the
// mapstructure names, which is what `am show` prints.
func Settings() map[string]interface{} {
	return GetViper().AllSettings()
}

// Marshal renders settings as toml, yaml or json.
func Marshal(settings map[string]interface{}, format string) ([]byte, error) {
	switch format {
	case "toml", "":
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(settings); err != nil {
			return nil, errors.Wrap(err, "encode toml")
		}
		return buf.Bytes(), nil
	case "yaml":
		out, err := yaml.Marshal(settings)
		return out, errors.Wrap(err, "encode yaml")
	case "json":
		out, err := json.MarshalIndent(settings, "", "  ")
		return out, errors.Wrap(err, "encode json")
	default:
		return nil, errors.NewInvalidRequestError("unknown format %q (use toml, yaml or json)", format)
	}
}

// WriteDefaults writes a TOML file holding every default setting to path.
// An existing file is left untouched.
func WriteDefaults(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file %s already exists", path)
	}

	v := newViper()
	out, err := Marshal(v.AllSettings(), "toml")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, out, 0o640), "write %s", path)
}
