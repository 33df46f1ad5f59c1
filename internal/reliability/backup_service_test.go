package reliability

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService_BackupFiles(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	t.Run("includes only files that exist", func(t *testing.T) {
		dataDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "loans.db"), []byte("db"), 0644))

		svc := NewBackupService(nil, dataDir, log)

		files := svc.backupFiles()
		assert.Equal(t, []string{"loans.db"}, files)
	})

	t.Run("includes parameter file when present", func(t *testing.T) {
		dataDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "loans.db"), []byte("db"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "risk_parameters.json"), []byte("{}"), 0644))

		svc := NewBackupService(nil, dataDir, log)

		files := svc.backupFiles()
		assert.Equal(t, []string{"loans.db", "risk_parameters.json"}, files)
	})

	t.Run("empty data directory yields no files", func(t *testing.T) {
		svc := NewBackupService(nil, t.TempDir(), log)
		assert.Empty(t, svc.backupFiles())
	})
}

func TestBackupService_CalculateChecksum(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewBackupService(nil, t.TempDir(), log)

	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	checksum, err := svc.calculateChecksum(path)
	require.NoError(t, err)

	// sha256("hello")
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", checksum)

	// Same content produces the same checksum
	again, err := svc.calculateChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, checksum, again)
}

func TestBackupService_CreateArchive(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewBackupService(nil, t.TempDir(), log)

	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "loans.db"), []byte("loan book"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "backup-metadata.json"), []byte(`{"version":"1.0.0"}`), 0644))

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	err := svc.createArchive(archivePath, sourceDir, []string{"loans.db", "backup-metadata.json"})
	require.NoError(t, err)

	// Read the archive back and verify contents
	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	contents := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[header.Name] = string(data)
	}

	assert.Equal(t, "loan book", contents["loans.db"])
	assert.Equal(t, `{"version":"1.0.0"}`, contents["backup-metadata.json"])
}

func TestBackupService_CreateArchiveMissingFile(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewBackupService(nil, t.TempDir(), log)

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	err := svc.createArchive(archivePath, t.TempDir(), []string{"missing.db"})
	assert.Error(t, err)
}
