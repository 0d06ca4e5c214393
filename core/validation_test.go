package core

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestValidateUpload(t *testing.T) {
	t.Run("accepts markdown", func(t *testing.T) {
		assert.NoError(t, ValidateUpload([]byte("# Hello"), "guide.md"))
	})

	t.Run("rejects empty content", func(t *testing.T) {
		err := ValidateUpload(nil, "guide.md")
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		err := ValidateUpload(make([]byte, MaxFileSize+1), "big.md")
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("rejects disallowed extension", func(t *testing.T) {
		err := ValidateUpload([]byte("binary"), "tool.exe")
		assert.ErrorIs(t, err, ErrDisallowedType)
	})

	t.Run("extension check is case-insensitive", func(t *testing.T) {
		assert.NoError(t, ValidateUpload([]byte("# Hello"), "GUIDE.MD"))
	})

	t.Run("wraps failures in a validation step error", func(t *testing.T) {
		err := ValidateUpload(nil, "guide.md")
		var se *StepError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, StepValidation, se.Step)
		assert.Equal(t, KindValidation, se.Kind)
		assert.Equal(t, "guide.md", se.File)
	})
}

func TestValidateZipArchive(t *testing.T) {
	t.Run("accepts a normal archive", func(t *testing.T) {
		data := buildZip(t, map[string]string{
			"docs/intro.md": "# Intro",
			"docs/api.md":   "# API",
		})
		assert.NoError(t, ValidateZipArchive(data))
	})

	t.Run("rejects invalid zip bytes", func(t *testing.T) {
		err := ValidateZipArchive([]byte("not a zip"))
		assert.ErrorIs(t, err, ErrUnsafeArchive)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		data := buildZip(t, map[string]string{"../escape.md": "# Escape"})
		err := ValidateZipArchive(data)
		assert.ErrorIs(t, err, ErrUnsafeArchive)
	})

	t.Run("rejects absolute paths", func(t *testing.T) {
		data := buildZip(t, map[string]string{"/etc/passwd": "root"})
		err := ValidateZipArchive(data)
		assert.ErrorIs(t, err, ErrUnsafeArchive)
	})

	t.Run("rejects archives routed through upload validation", func(t *testing.T) {
		data := buildZip(t, map[string]string{"../x.md": "bad"})
		err := ValidateUpload(data, "docs.zip")
		assert.ErrorIs(t, err, ErrUnsafeArchive)
	})
}

func TestSanitizeFilename(t *testing.T) {
	t.Run("strips directories", func(t *testing.T) {
		assert.Equal(t, "guide.md", SanitizeFilename("../../docs/guide.md"))
	})

	t.Run("replaces unsafe characters", func(t *testing.T) {
		assert.Equal(t, "my_file_v2_.md", SanitizeFilename("my file:v2!.md"))
	})

	t.Run("keeps safe names intact", func(t *testing.T) {
		assert.Equal(t, "api-reference_v1.2.md", SanitizeFilename("api-reference_v1.2.md"))
	})
}
