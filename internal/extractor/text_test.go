package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPlainTextDecoding(t *testing.T) {
	ctx := context.Background()

	t.Run("strips BOM", func(t *testing.T) {
		path := writeFile(t, "bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello world")...))
		res, err := PlainText{}.Extract(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "hello world", res.Text)
	})

	t.Run("replaces invalid utf8", func(t *testing.T) {
		path := writeFile(t, "bad.txt", []byte{'a', 0xff, 'b'})
		res, err := PlainText{}.Extract(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "a�b", res.Text)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := PlainText{}.Extract(ctx, filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("cancelled context", func(t *testing.T) {
		path := writeFile(t, "a.txt", []byte("x"))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := PlainText{}.Extract(cctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDelimited(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		file       string
		data       string
		want       string
		wantMethod string
	}{
		{
			name: "csv rows",
			file: "a.csv",
			data: "name,city\nAda,London\n\"Grace, R.\",Arlington\n",
			want: "name city\nAda London\nGrace, R. Arlington",
		},
		{
			name: "tsv rows",
			file: "a.tsv",
			data: "id\tvalue\n1\tone\n",
			want: "id value\n1 one",
		},
		{
			name: "ragged rows allowed",
			file: "r.csv",
			data: "a,b,c\nd\n",
			want: "a b c\nd",
		},
		{
			name:       "unterminated quote falls back to raw",
			file:       "broken.csv",
			data:       "a,\"b\nc,d",
			want:       "a,\"b\nc,d",
			wantMethod: "raw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, []byte(tt.data))
			res, err := Delimited{}.Extract(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, tt.wantMethod, res.Method)
			if tt.wantMethod == "raw" {
				assert.Contains(t, res.Diagnostic, "delimited parse failed")
			}
		})
	}
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewDefaultRegistry(Options{})

	assert.True(t, reg.Supports("/x/REPORT.PDF"))
	assert.True(t, reg.Supports("notes.md"))
	assert.False(t, reg.Supports("image.png"))
	assert.False(t, reg.Supports("Makefile"))
	assert.Contains(t, reg.Extensions(), ".docx")

	t.Run("unsupported", func(t *testing.T) {
		_, err := reg.Extract(ctx, "photo.png")
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("defaults method and status", func(t *testing.T) {
		path := writeFile(t, "doc.txt", []byte("some text"))
		res, err := reg.Extract(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "text", res.Method)
		assert.Equal(t, types.StatusOK, res.Status)
	})

	t.Run("blank text is empty", func(t *testing.T) {
		path := writeFile(t, "blank.txt", []byte("  \n\t"))
		res, err := reg.Extract(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, types.StatusEmpty, res.Status)
	})

	t.Run("errors name the file", func(t *testing.T) {
		path := writeFile(t, "bad.docx", []byte("not a zip"))
		_, err := reg.Extract(ctx, path)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrMalformedInput)
		assert.Contains(t, err.Error(), "office extraction of bad.docx")
	})
}

func TestRegisterNormalizesExtensions(t *testing.T) {
	reg := NewRegistry()
	reg.Register(PlainText{}, "LOG", ".Conf")

	e, ok := reg.Lookup("server.log")
	require.True(t, ok)
	assert.Equal(t, "text", e.Kind())
	assert.True(t, reg.Supports("x.conf"))
	assert.Equal(t, []string{".conf", ".log"}, reg.Extensions())
}
