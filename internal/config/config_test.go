package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sirherobrine23.com.br/go-bds/go-armexec"
)

const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func clearEnv(t *testing.T) {
	for _, key := range []string{"ARMEXEC_CONFIG", "ARMEXEC_EMULATOR", "ARMEXEC_EMULATOR_DIGEST"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "armexec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
emulator: /opt/qemu/bin/qemu-arm
digest: sha256:`+abcSHA256+`
strip: LD_AUDIT
debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/qemu/bin/qemu-arm", cfg.Emulator)
	assert.Equal(t, abcSHA256, cfg.Digest)
	assert.Equal(t, "LD_AUDIT", cfg.Strip)
	assert.True(t, cfg.Debug)

	g := cfg.Gate()
	assert.Equal(t, "/opt/qemu/bin/qemu-arm", g.Binfmt.Emulator)
	assert.Equal(t, abcSHA256, g.Binfmt.Digest)
	assert.Equal(t, "LD_AUDIT", g.Strip)
}

func TestLoadFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARMEXEC_CONFIG", writeConfig(t, "emulator: /usr/local/bin/qemu-arm-static\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/qemu-arm-static", cfg.Emulator)
	assert.Equal(t, armexec.PreloadVar, cfg.Strip)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "emulator: /opt/qemu-arm\ndigest: "+abcSHA256+"\n")
	t.Setenv("ARMEXEC_EMULATOR", "/srv/qemu-arm-static")
	t.Setenv("ARMEXEC_EMULATOR_DIGEST", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/qemu-arm-static", cfg.Emulator)
	assert.Empty(t, cfg.Digest)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "emulator: [not, a, string]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "emulator: qemu-arm-static\n"))
	assert.ErrorContains(t, err, "must be absolute")

	_, err = Load(writeConfig(t, "digest: PLACEHOLDER_HASH\n"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, armexec.EmulatorPath, cfg.Emulator)
	assert.Equal(t, armexec.PreloadVar, cfg.Strip)

	b := cfg.Binfmt()
	assert.Equal(t, armexec.ARM32().Machine, b.Machine)
	assert.Equal(t, armexec.ARM32().Class, b.Class)
}
