package jar

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/EditMySave/HyOS-sub001/internal/fsutil"
)

// Patch injects the stub entry point into a content-only archive and points
// the manifests at it. The archive is rewritten to a temp file and renamed
// over the original, then re-inspected.
func Patch(archivePath string) error {
	insp, err := Inspect(archivePath)
	if err != nil {
		return err
	}
	if insp.IsPatched {
		return ErrAlreadyPatched
	}
	if !insp.NeedsPatch {
		return ErrNoPatchNeeded
	}

	st, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, archivePath)
		}
		return fmt.Errorf("stat %s: %w", archivePath, err)
	}

	src, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	// The rename replaces the path, not the open file, so src stays valid
	// until closed.
	err = fsutil.WriteAtomic(archivePath, st.Mode().Perm(), func(w io.Writer) error {
		return rewrite(&src.Reader, w)
	})
	src.Close()
	if err != nil {
		return fmt.Errorf("patching %s: %w", archivePath, err)
	}

	after, err := Inspect(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if !after.IsPatched || after.NeedsPatch {
		return fmt.Errorf("%w: isPatched=%v needsPatch=%v", ErrVerificationFailed, after.IsPatched, after.NeedsPatch)
	}

	slog.Info("archive patched", "path", archivePath, "stub", StubClass)
	return nil
}

// rewrite copies zr into w with a rewritten manifest and the stub class.
// Signature files are dropped because the manifest no longer matches them.
func rewrite(zr *zip.Reader, w io.Writer) error {
	zw := zip.NewWriter(w)
	now := time.Now()

	var mf *Manifest
	var pluginManifest *zip.File
	hasMetaDir := false
	for _, f := range zr.File {
		switch f.Name {
		case ManifestPath:
			data, err := readEntry(f)
			if err != nil {
				return err
			}
			mf = ParseManifest(data)
		case PluginManifestPath:
			pluginManifest = f
		case "META-INF/":
			hasMetaDir = true
		}
	}
	if mf == nil {
		mf = &Manifest{}
	}
	mf.Set("Main-Class", StubClass)

	// Jar readers expect the manifest as the first or second entry.
	if hasMetaDir {
		if _, err := zw.CreateHeader(&zip.FileHeader{Name: "META-INF/", Method: zip.Store, Modified: now}); err != nil {
			return fmt.Errorf("writing META-INF/: %w", err)
		}
	}
	if err := writeEntry(zw, ManifestPath, mf.Bytes(), now); err != nil {
		return err
	}

	if pluginManifest != nil {
		data, err := readEntry(pluginManifest)
		if err != nil {
			return err
		}
		patched, err := patchPluginManifest(data)
		if err != nil {
			return err
		}
		if err := writeEntry(zw, PluginManifestPath, patched, now); err != nil {
			return err
		}
	}

	for _, f := range zr.File {
		if skipOnRewrite(f.Name) {
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("copying %s: %w", f.Name, err)
		}
	}

	if err := writeEntry(zw, StubPath, stubClass, now); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

func skipOnRewrite(name string) bool {
	switch name {
	case "META-INF/", ManifestPath, PluginManifestPath, StubPath:
		return true
	}
	if dir, file := path.Split(name); dir == "META-INF/" {
		switch strings.ToUpper(path.Ext(file)) {
		case ".SF", ".RSA", ".DSA", ".EC":
			return true
		}
	}
	return false
}

func writeEntry(zw *zip.Writer, name string, data []byte, mod time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mod})
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// patchPluginManifest points manifest.json at the stub and fills the fields
// the loader requires of a content mod.
func patchPluginManifest(data []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", PluginManifestPath, err)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}

	doc["Main"] = json.RawMessage(`"` + StubClass + `"`)
	setDefault(doc, "IncludesAssetPack", `true`)
	setDefault(doc, "LoadBefore", `{}`)
	setDefault(doc, "SubPlugins", `[]`)
	if sv, ok := doc["ServerVersion"]; !ok || string(sv) == `"*"` {
		doc["ServerVersion"] = json.RawMessage(`""`)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", PluginManifestPath, err)
	}
	return out, nil
}

func setDefault(doc map[string]json.RawMessage, key, value string) {
	if _, ok := doc[key]; !ok {
		doc[key] = json.RawMessage(value)
	}
}
