package cli

import (
	"bytes"
	"path/filepath"
	"testing"
)

func BenchmarkCLIRoundTrip(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var out bytes.Buffer
		cmd := NewRootCommand(&out, BuildInfo{Version: "bench", Commit: "bench", BuildTime: "bench"})
		cmd.SetArgs([]string{"version"})
		if err := cmd.Execute(); err != nil {
			b.Fatalf("execute version command: %v", err)
		}
	}
}

func BenchmarkQueryTopStudents(b *testing.B) {
	dir := b.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "config.toml"),
		"--database-url", "sqlite:///" + filepath.Join(dir, "bench.db"),
		"--log-level", "error",
		"--quiet",
	}
	run := func(args ...string) {
		cmd := NewRootCommand(&bytes.Buffer{}, BuildInfo{Version: "bench"})
		cmd.SetArgs(append(append([]string{}, base...), args...))
		if err := cmd.Execute(); err != nil {
			b.Fatalf("execute %v: %v", args, err)
		}
	}
	run("seed", "--seed", "1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run("query", "top-students")
	}
}
