package extractor

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"libscout/internal/fact"
	"libscout/internal/logging"
)

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func byFqn(facts []fact.Fact) map[string]fact.Fingerprint {
	out := make(map[string]fact.Fingerprint, len(facts))
	for _, f := range facts {
		out[f.Fqn] = f.Fingerprint
	}
	return out
}

func TestExtractor_BytesMode(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"com/acme/Foo.class":          "\xca\xfe\xba\xbe foo",
		"com/acme/Foo$Inner.class":    "\xca\xfe\xba\xbe inner",
		"com/acme/package-info.class": "\xca\xfe\xba\xbe pkg",
		"module-info.class":           "\xca\xfe\xba\xbe mod",
		"META-INF/MANIFEST.MF":        "Manifest-Version: 1.0\n",
		"META-INF/versions/9/com/acme/Foo.class": "\xca\xfe\xba\xbe foo9",
		"com/acme/readme.txt":         "not a class",
	})

	ext, err := NewExtractor(ModeBytes, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, ModeBytes, ext.Mode())

	facts, err := ext.ExtractArchive(context.Background(), archive)
	require.NoError(t, err)

	got := byFqn(facts)
	require.Len(t, got, 2)
	sum := blake3.Sum256([]byte("\xca\xfe\xba\xbe foo"))
	assert.Equal(t, fact.Fingerprint(hex.EncodeToString(sum[:])), got["com.acme.Foo"])
	assert.Contains(t, got, "com.acme.Foo$Inner")
	for _, fp := range got {
		assert.True(t, fp.Valid())
	}
}

const greeterV1 = `package com.acme;

import java.util.List;

/** Greets people. */
public class Greeter<T> extends Base implements Runnable {
    private final String name = "x";

    public Greeter(String name) { this.name = name; }

    public void run() { System.out.println(name); }

    public static class Inner { int x; }

    enum Mode { A, B; void m() {} }
}

interface Helper { int VALUE = 1; void help(); }
`

// Same declarations: reformatted, members reordered, bodies and initializers
// changed.
const greeterV1Reformatted = `package com.acme;
import java.util.List;
// a comment
public class Greeter<T>
        extends Base
        implements Runnable {
    public void run() { /* nothing */ doSomethingElse(); }
    public Greeter( String name ) {
    }
    private final String name = "y";
    public static class Inner {
        int x;
    }
    enum Mode { A, B; void m() { return; } }
}
interface Helper { int VALUE = 2; void help(); }
`

const greeterV2 = `package com.acme;

public class Greeter<T> extends Base implements Runnable {
    private final String name = "x";
    public Greeter(String name) { this.name = name; }
    public void run() { System.out.println(name); }
    public void stop() {}
    public static class Inner { int x; }
    enum Mode { A, B; void m() {} }
}

interface Helper { int VALUE = 1; void help(); }
`

func TestExtractor_StructureMode(t *testing.T) {
	ext, err := NewExtractor(ModeStructure, logging.Discard())
	require.NoError(t, err)

	extract := func(src string) map[string]fact.Fingerprint {
		t.Helper()
		archive := writeArchive(t, map[string]string{
			"com/acme/Greeter.java":      src,
			"com/acme/package-info.java": "package com.acme;",
			"com/acme/Greeter.class":     "ignored in structure mode",
		})
		facts, err := ext.ExtractArchive(context.Background(), archive)
		require.NoError(t, err)
		return byFqn(facts)
	}

	v1 := extract(greeterV1)
	assert.Len(t, v1, 4)
	for _, fqn := range []string{"com.acme.Greeter", "com.acme.Greeter$Inner", "com.acme.Greeter$Mode", "com.acme.Helper"} {
		assert.Contains(t, v1, fqn)
		assert.True(t, v1[fqn].Valid())
	}

	t.Run("Bodies and formatting do not matter", func(t *testing.T) {
		assert.Equal(t, v1, extract(greeterV1Reformatted))
	})

	t.Run("A new member changes only its type", func(t *testing.T) {
		v2 := extract(greeterV2)
		assert.NotEqual(t, v1["com.acme.Greeter"], v2["com.acme.Greeter"])
		assert.Equal(t, v1["com.acme.Greeter$Inner"], v2["com.acme.Greeter$Inner"])
		assert.Equal(t, v1["com.acme.Helper"], v2["com.acme.Helper"])
	})
}

func TestExtractor_Errors(t *testing.T) {
	_, err := NewExtractor("ast", nil)
	assert.Error(t, err)

	ext, err := NewExtractor(ModeBytes, logging.Discard())
	require.NoError(t, err)

	bogus := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip"), 0o644))
	_, err = ext.ExtractArchive(context.Background(), bogus)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	archive := writeArchive(t, map[string]string{"a/B.class": "b"})
	_, err = ext.ExtractArchive(ctx, archive)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "public void run(String a,int b)", canonicalize("  public void  run( String a ,\n int b )  "))
	assert.Equal(t, "", canonicalize(" \t\n"))
	assert.Equal(t, signatureDigest("class", "a", []string{"x"}), signatureDigest("class", "a", []string{"x"}))
	assert.NotEqual(t, signatureDigest("class", "a", nil), signatureDigest("interface", "a", nil))
}
