package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peheader/common"
	"peheader/perw"
)

func resetState() {
	config = &Config{}
	stats = &ProcessStats{}
}

func writeFixtures(t *testing.T) map[string]string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"pe32":    filepath.Join(dir, "pe32.exe"),
		"pe32p":   filepath.Join(dir, "pe32p.exe"),
		"archive": filepath.Join(dir, "lib.a"),
		"text":    filepath.Join(dir, "notes.txt"),
		"empty":   filepath.Join(dir, "empty"),
	}
	require.NoError(t, perw.WriteTemplate(files["pe32"], perw.PE32))
	require.NoError(t, perw.WriteTemplate(files["pe32p"], perw.PE32Plus))
	require.NoError(t, os.WriteFile(files["archive"], []byte("!<arch>\n/               0           0     0     0       4         `\n"), 0644))
	require.NoError(t, os.WriteFile(files["text"], []byte(strings.Repeat("plain text, not an image\n", 10)), 0644))
	require.NoError(t, os.WriteFile(files["empty"], nil, 0644))
	return files
}

func TestProcessFile(t *testing.T) {
	files := writeFixtures(t)

	tests := []struct {
		name        string
		file        string
		quiet       bool
		wantErr     bool
		wantSummary perw.Summary
		wantReport  []string
	}{
		{"pe32", "pe32", false, false, perw.Summary{PE: true}, []string{"magic # (PE32)", "SUMMARY\nArchive: FALSE\nPE: TRUE"}},
		{"pe32plus quiet", "pe32p", true, false, perw.Summary{PE: true}, []string{"SUMMARY"}},
		{"archive", "archive", false, true, perw.Summary{Archive: true}, []string{"Archive: TRUE"}},
		{"text", "text", false, true, perw.Summary{}, []string{"Error: not a PE file", "PE: FALSE"}},
		{"empty", "empty", false, true, perw.Summary{}, []string{"PE: FALSE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetState()
			config.Quiet = tt.quiet

			result := processFile(files[tt.file])
			assert.Equal(t, tt.wantErr, result.Error != nil, "error: %v", result.Error)
			assert.Equal(t, tt.wantSummary, result.Summary)
			for _, want := range tt.wantReport {
				assert.Contains(t, result.Report, want)
			}
			if tt.quiet {
				assert.True(t, strings.HasPrefix(result.Report, "SUMMARY\n"))
			}
		})
	}
}

func TestProcessFileVerifyAndRaw(t *testing.T) {
	files := writeFixtures(t)
	resetState()
	config.Verify = true
	config.Raw = true

	result := processFile(files["pe32p"])
	require.NoError(t, result.Error)
	require.NotNil(t, result.Check)
	assert.False(t, result.Check.Failed())
	assert.Contains(t, result.Report, "VERIFY OK (debug/pe)")
	assert.Contains(t, result.Report, "(*perw.Headers)")
}

func TestProcessFileMissing(t *testing.T) {
	resetState()
	result := processFile(filepath.Join(t.TempDir(), "missing.exe"))
	assert.Error(t, result.Error)
	assert.Empty(t, result.Report)
}

func TestRunExitCodes(t *testing.T) {
	files := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no files", []string{}, exitUsage},
		{"bad flag", []string{"--bogus"}, exitUsage},
		{"bad log level", []string{"-l", "loud", "-f", files["pe32"]}, exitUsage},
		{"template without output", []string{"-t", "PE32"}, exitUsage},
		{"version", []string{"-V"}, exitOK},
		{"single pe", []string{"-f", files["pe32"]}, exitOK},
		{"quiet parallel", []string{"-q", "-j", "-w", "64", "-f", files["pe32"], "-f", files["pe32p"]}, exitOK},
		{"one failure", []string{"-q", "-f", files["pe32"], "-f", files["text"]}, exitFailure},
		{"archive fails", []string{"-f", files["archive"]}, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetState()
			got := run(append([]string{"peheader"}, tt.args...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunWorkersClamped(t *testing.T) {
	files := writeFixtures(t)
	resetState()
	require.Equal(t, exitOK, run([]string{"peheader", "-q", "-j", "-w", "64", "-f", files["pe32"]}))
	assert.Equal(t, 16, config.MaxWorkers)

	resetState()
	require.Equal(t, exitOK, run([]string{"peheader", "-q", "-w", "0", "-f", files["pe32"]}))
	assert.Equal(t, 1, config.MaxWorkers)
}

func TestRunTemplate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tmpl.exe")
	resetState()
	require.Equal(t, exitOK, run([]string{"peheader", "-t", "PE32+", "-o", out}))

	h, err := perw.DecodeFile(out, common.Log)
	require.NoError(t, err)
	assert.Equal(t, perw.PE32Plus, h.Variant())
}

func TestParallelKeepsInputOrder(t *testing.T) {
	files := writeFixtures(t)
	resetState()
	config.Quiet = true
	config.MaxWorkers = 4

	order := []string{files["text"], files["pe32"], files["archive"], files["pe32p"], files["empty"]}
	config.Files = order
	results := processFilesParallel(order)
	require.Len(t, results, len(order))
	for i, r := range results {
		assert.Equal(t, order[i], r.Filename)
	}
}
