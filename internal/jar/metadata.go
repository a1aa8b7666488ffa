package jar

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// pluginManifest is the server's manifest.json. Dependencies may be plain
// strings or objects with a Group.
type pluginManifest struct {
	Group         string            `json:"Group"`
	Name          string            `json:"Name"`
	Version       string            `json:"Version"`
	Main          string            `json:"Main"`
	ServerVersion string            `json:"ServerVersion"`
	Dependencies  []json.RawMessage `json:"Dependencies"`
}

func (p pluginManifest) dependencyNames() []string {
	var out []string
	for _, raw := range p.Dependencies {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Group string `json:"Group"`
			Name  string `json:"Name"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && (obj.Group != "" || obj.Name != "") {
			out = append(out, strings.TrimPrefix(obj.Group+":"+obj.Name, ":"))
			continue
		}
		out = append(out, strings.Trim(string(raw), `"`))
	}
	return out
}

// readManifestInfo collects the entry point and identity of the archive.
// The entry point comes from MANIFEST.MF Main-Class, falling back to
// manifest.json Main; both are kept so inspect can check each. Name and version come from the first source that
// has them.
func readManifestInfo(entries map[string]*zip.File) (*ManifestInfo, error) {
	info := &ManifestInfo{}

	var mf *Manifest
	if f, ok := entries[ManifestPath]; ok {
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		mf = ParseManifest(data)
		info.HasManifest = true
		info.MainClass = mf.Get("Main-Class")
	}

	if f, ok := entries[PluginManifestPath]; ok {
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		var pm pluginManifest
		if err := json.Unmarshal(data, &pm); err != nil {
			slog.Warn("ignoring unparsable plugin manifest", "error", err)
		} else {
			info.HasManifest = true
			info.PluginMain = strings.TrimSpace(pm.Main)
			if info.MainClass == "" {
				info.MainClass = info.PluginMain
			}
			info.Group = pm.Group
			info.Dependencies = pm.dependencyNames()
			info.ServerVersion = pm.ServerVersion
			if pm.Version != "" {
				info.Name, info.Version, info.Source = pm.Name, pm.Version, PluginManifestPath
				return info, nil
			}
		}
	}

	if mf != nil {
		name := firstNonEmpty(mf.Get("Implementation-Title"), mf.Get("Bundle-Name"))
		version := firstNonEmpty(mf.Get("Implementation-Version"), mf.Get("Bundle-Version"))
		if version != "" {
			info.Name, info.Version, info.Source = name, version, ManifestPath
			return info, nil
		}
	}

	for _, src := range []struct {
		path  string
		parse func([]byte) (string, string, error)
	}{
		{"plugin.yml", parsePluginYML},
		{"fabric.mod.json", parseFabricModJSON},
		{"META-INF/mods.toml", parseModsTOML},
	} {
		f, ok := entries[src.path]
		if !ok {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		name, version, err := src.parse(data)
		if err != nil {
			slog.Warn("ignoring unparsable mod metadata", "entry", src.path, "error", err)
			continue
		}
		if version != "" {
			info.Name, info.Version, info.Source = name, version, src.path
			return info, nil
		}
	}

	return info, nil
}

func parsePluginYML(data []byte) (string, string, error) {
	var doc struct {
		Name    string `yaml:"name"`
		Version any    `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", "", fmt.Errorf("parsing plugin.yml: %w", err)
	}
	if doc.Version == nil {
		return doc.Name, "", nil
	}
	return doc.Name, fmt.Sprint(doc.Version), nil
}

func parseFabricModJSON(data []byte) (string, string, error) {
	var doc struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", "", fmt.Errorf("parsing fabric.mod.json: %w", err)
	}
	return doc.Name, doc.Version, nil
}

func parseModsTOML(data []byte) (string, string, error) {
	var doc struct {
		Mods []struct {
			ModID       string `toml:"modId"`
			Version     string `toml:"version"`
			DisplayName string `toml:"displayName"`
		} `toml:"mods"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", "", fmt.Errorf("parsing mods.toml: %w", err)
	}
	if len(doc.Mods) == 0 {
		return "", "", nil
	}
	m := doc.Mods[0]
	version := m.Version
	// Build-time placeholder, not a real version.
	if strings.HasPrefix(version, "${") {
		version = ""
	}
	return firstNonEmpty(m.DisplayName, m.ModID), version, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
