package jar

import (
	"strings"
	"testing"
)

func TestParseManifestContinuation(t *testing.T) {
	data := "Manifest-Version: 1.0\r\nClass-Path: lib/a.jar lib/b\r\n .jar\r\nMain-Class: com.example.Main\r\n\r\nName: com/example/\r\nSealed: true\r\n"
	m := ParseManifest([]byte(data))

	if got := m.Get("class-path"); got != "lib/a.jar lib/b.jar" {
		t.Errorf("Class-Path = %q", got)
	}
	if got := m.Get("Main-Class"); got != "com.example.Main" {
		t.Errorf("Main-Class = %q", got)
	}
	if len(m.Sections) != 1 || len(m.Sections[0]) != 2 {
		t.Fatalf("sections = %+v", m.Sections)
	}
}

func TestManifestBytesWrapsLongLines(t *testing.T) {
	long := strings.Repeat("lib/dependency.jar ", 12)
	m := &Manifest{}
	m.Set("Class-Path", long)
	m.Set("Main-Class", StubClass)

	out := m.Bytes()
	lines := strings.Split(strings.TrimSuffix(string(out), "\r\n"), "\r\n")
	if lines[0] != "Manifest-Version: 1.0" {
		t.Errorf("first line = %q, want Manifest-Version", lines[0])
	}
	for _, l := range lines {
		if len(l) > maxLineBytes {
			t.Errorf("line exceeds %d bytes: %q", maxLineBytes, l)
		}
	}

	again := ParseManifest(out)
	if got := again.Get("Class-Path"); got != strings.TrimSpace(long) {
		t.Errorf("round trip Class-Path = %q", got)
	}
}

func TestManifestWrapKeepsMultibyteRunes(t *testing.T) {
	m := &Manifest{}
	m.Set("Implementation-Title", strings.Repeat("é", 60))
	again := ParseManifest(m.Bytes())
	if got := again.Get("Implementation-Title"); got != strings.Repeat("é", 60) {
		t.Errorf("title = %q", got)
	}
}

func TestManifestSetReplacesInPlace(t *testing.T) {
	m := ParseManifest([]byte("Manifest-Version: 1.0\r\nmain-class: old.Main\r\nCreated-By: x\r\n"))
	m.Set("Main-Class", "new.Main")

	if len(m.Main) != 3 || m.Main[1].Value != "new.Main" {
		t.Errorf("Main = %+v", m.Main)
	}
}
