package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/clrrefs/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func fixture(t *testing.T) string {
	t.Helper()
	b := testutil.New()
	b.Module("app.dll", [16]byte{1})
	b.Assembly("app", 1, 0, 0, 0)
	lib := b.AssemblyRef("Lib")
	sys := b.AssemblyRef("System.Runtime")
	outer := b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, lib), "N", "Outer")
	b.TypeRef(testutil.Scope(testutil.ScopeTypeRef, outer), "", "Inner")
	b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, sys), "System", "Object")
	b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, lib), "N", "Other")
	return b.WriteFile(t)
}

func TestRunFlat(t *testing.T) {
	path := fixture(t)
	code, stdout, _ := runCLI(t, path)
	require.Equal(t, exitOK, code)
	require.Equal(t, `[{"assembly":"Lib","type":"N.Outer.Inner"},`+
		`{"assembly":"System.Runtime","type":"System.Object"},`+
		`{"assembly":"Lib","type":"N.Other"}]`+"\n", stdout)
}

func TestRunGrouped(t *testing.T) {
	path := fixture(t)
	code, stdout, _ := runCLI(t, "-g", path)
	require.Equal(t, exitOK, code)
	require.Equal(t, `[{"assembly":"Lib","types":["N.Outer.Inner","N.Other"]},`+
		`{"assembly":"System.Runtime","types":["System.Object"]}]`+"\n", stdout)
}

func TestRunFilter(t *testing.T) {
	path := fixture(t)
	code, stdout, _ := runCLI(t, "-a", "System\\..*", path)
	require.Equal(t, exitOK, code)
	require.Equal(t, `[{"assembly":"System.Runtime","type":"System.Object"}]`+"\n", stdout)

	code, stdout, _ = runCLI(t, "-a", "Sys", path)
	require.Equal(t, exitOK, code)
	require.Equal(t, "[]\n", stdout)
}

func TestRunEnclosing(t *testing.T) {
	path := fixture(t)
	code, stdout, _ := runCLI(t, "--enclosing", "-a", "Lib", path)
	require.Equal(t, exitOK, code)
	require.Equal(t, `[{"assembly":"Lib","type":"N.Outer"},`+
		`{"assembly":"Lib","type":"N.Outer.Inner"},`+
		`{"assembly":"Lib","type":"N.Other"}]`+"\n", stdout)
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	code, stdout, _ := runCLI(t)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "Usage:")
	require.Contains(t, stdout, "even if used directly")
}

func TestRunExitCodes(t *testing.T) {
	path := fixture(t)
	garbage := filepath.Join(t.TempDir(), "garbage.dll")
	require.NoError(t, os.WriteFile(garbage, bytes.Repeat([]byte{0xCC}, 512), 0o644))

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"help", []string{"--help"}, exitOK},
		{"unknown flag", []string{"--bogus", path}, exitUsage},
		{"bad pattern", []string{"-a", "(", path}, exitBadPattern},
		{"bad pattern before count", []string{"-a", "[", path, path}, exitBadPattern},
		{"too many files", []string{path, path}, exitArgs},
		{"missing file", []string{filepath.Join(t.TempDir(), "missing.dll")}, exitOpen},
		{"malformed file", []string{garbage}, exitMalformed},
		{"info without file", []string{"info"}, exitArgs},
		{"tables missing file", []string{"tables", filepath.Join(t.TempDir(), "missing.dll")}, exitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args...)
			require.Equal(t, tt.code, code, stderr)
			if code != exitOK {
				require.Empty(t, stdout)
				require.NotEmpty(t, stderr)
			}
		})
	}
}

func TestRunConfigFromEnv(t *testing.T) {
	b := testutil.New()
	b.ModuleRef("native.dll")
	b.TypeRef(testutil.Scope(testutil.ScopeModuleRef, 1), "N", "Local")
	path := b.WriteFile(t)

	code, stdout, _ := runCLI(t, path)
	require.Equal(t, exitOK, code)
	require.Equal(t, "[]\n", stdout)

	t.Setenv("CLRREFS_INCLUDE_LOCAL", "true")
	code, stdout, _ = runCLI(t, path)
	require.Equal(t, exitOK, code)
	require.Equal(t, `[{"assembly":"native.dll","type":"N.Local"}]`+"\n", stdout)

	t.Setenv("CLRREFS_MAX_SCOPE_DEPTH", "nope")
	code, stdout, _ = runCLI(t, path)
	require.Equal(t, exitUsage, code)
	require.Empty(t, stdout)
}

func TestInfoCommand(t *testing.T) {
	path := fixture(t)
	code, stdout, _ := runCLI(t, "info", path)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "Module: app.dll\n")
	require.Contains(t, stdout, "GUID Heap: 1 entries\n")
	require.Contains(t, stdout, "Assembly: app, Version=1.0.0.0, Culture=neutral\n")
	require.Contains(t, stdout, "Referenced Assemblies: 2\n  Lib\n  System.Runtime\n")
	require.Contains(t, stdout, "#~")
}

func TestTablesCommand(t *testing.T) {
	path := fixture(t)
	code, stdout, _ := runCLI(t, "tables", path)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "TypeRef")
	require.Contains(t, stdout, "AssemblyRef")
	require.Contains(t, stdout, "\nTotal: 4 tables, 8 rows\n")
}
