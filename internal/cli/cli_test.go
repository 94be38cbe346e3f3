package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk"
	"github.com/s3desk/s3desk/internal/config"
	"github.com/s3desk/s3desk/internal/testutil"
	"github.com/s3desk/s3desk/registry"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

type harness struct {
	t        *testing.T
	fake     *testutil.FakeS3
	localDir string
	saveDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		fake:     testutil.NewFakeS3(t, "cli-test"),
		localDir: t.TempDir(),
		saveDir:  t.TempDir(),
	}
	t.Setenv("S3DESK_DOWNLOAD_DIR", h.saveDir)
	return h
}

func (h *harness) factory(cfg *config.Config, logger *slog.Logger) (*s3desk.Client, error) {
	return s3desk.NewWithClient(h.fake.Client, h.fake.Presign, ClientOptions(cfg, logger)...)
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewWithFactory(&out, &errOut, h.factory)
	cmd.SetArgs(append([]string{"--bucket", h.fake.Bucket, "--quiet"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) writeLocal(rel, content string) string {
	h.t.Helper()
	path := filepath.Join(h.localDir, rel)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommands(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in-process S3 round trip in short mode")
	}
	h := newHarness(t)
	report := h.writeLocal("report.txt", "quarterly numbers")
	h.writeLocal("site/index.html", "<html></html>")
	h.writeLocal("site/app.log", "noise")

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{
			name: "upload file into folder",
			args: []string{"upload", report, "docs/"},
			want: []string{"uploaded docs/report.txt"},
		},
		{
			name: "upload directory",
			args: []string{"upload", filepath.Join(h.localDir, "site"), "web", "--exclude", "*.log"},
			want: []string{"uploaded 1 files"},
		},
		{
			name: "list root",
			args: []string{"ls"},
			want: []string{"docs/", "web/"},
		},
		{
			name: "list folder",
			args: []string{"ls", "docs"},
			want: []string{"report.txt", "STANDARD"},
		},
		{
			name: "download",
			args: []string{"download", "docs/report.txt", "-o", "copy.txt"},
			want: []string{"saved copy.txt"},
		},
		{
			name: "status",
			args: []string{"status", "docs/report.txt"},
			want: []string{"available"},
		},
		{
			name: "stats",
			args: []string{"stats"},
			want: []string{"Objects", "2"},
		},
		{
			name: "download folder",
			args: []string{"download-folder", "docs"},
			want: []string{"saved docs.zip with 1 files"},
		},
		{
			name: "rename",
			args: []string{"rename", "docs/report.txt", "final.txt"},
			want: []string{"renamed docs/report.txt to docs/final.txt"},
		},
		{
			name: "rename folder",
			args: []string{"rename", "--folder", "web", "www"},
			want: []string{"renamed web/ to www/"},
		},
		{
			name:    "restore standard object",
			args:    []string{"restore", "docs/final.txt"},
			wantErr: true,
		},
		{
			name: "history",
			args: []string{"history"},
			want: []string{"Upload", "report.txt", "Download", "docs.zip"},
		},
		{
			name: "remove folder",
			args: []string{"rm", "-r", "www"},
			want: []string{"deleted 1 objects"},
		},
		{
			name: "remove object",
			args: []string{"rm", "docs/final.txt"},
			want: []string{"deleted docs/final.txt"},
		},
		{
			name: "list empty bucket",
			args: []string{"ls"},
			want: []string{"empty"},
		},
		{
			name:    "unknown object",
			args:    []string{"download", "docs/missing.txt"},
			wantErr: true,
		},
	}

	// the cases share one bucket and run in order
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.run(tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}

	saved, err := os.ReadFile(filepath.Join(h.saveDir, "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(saved))
	assert.FileExists(t, filepath.Join(h.saveDir, "docs.zip"))
}

func TestHistory_Clear(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in-process S3 round trip in short mode")
	}
	h := newHarness(t)
	_, err := h.run("upload", h.writeLocal("a.txt", "a"))
	require.NoError(t, err)

	out, err := h.run("history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "history cleared")

	out, err = h.run("history")
	require.NoError(t, err)
	assert.Contains(t, out, "no activity")
}

func TestRoot_Help(t *testing.T) {
	var out bytes.Buffer
	cmd := NewWithFactory(&out, &out, func(*config.Config, *slog.Logger) (*s3desk.Client, error) {
		t.Fatal("help must not build a client")
		return nil, nil
	})
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "download-folder")
}

func TestRoot_MissingBucket(t *testing.T) {
	var out bytes.Buffer
	cmd := New(&out, &out)
	cmd.SetArgs([]string{"ls"})
	t.Setenv("S3DESK_BUCKET", "")
	assert.Error(t, cmd.Execute())
}

func TestWatch(t *testing.T) {
	reg := registry.New()
	var out bytes.Buffer
	stop := watch(reg, &out)

	id := reg.Add(registry.Meta{Name: "a.txt", Kind: registry.KindUpload, TotalBytes: 10})
	reg.UpdateProgress(id, 5, 10)
	reg.UpdateProgress(id, 10, 10)
	reg.Complete(id)

	failed := reg.Add(registry.Meta{Name: "b.txt", Kind: registry.KindDownload, TotalBytes: 10})
	reg.Fail(failed, assert.AnError)

	stop()
	assert.Contains(t, out.String(), "a.txt")
	assert.Contains(t, out.String(), assert.AnError.Error())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}
