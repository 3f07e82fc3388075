package config

import (
	"os"
	"path/filepath"
	"pixrelay/internal/core/domain"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 14*time.Second, cfg.Orchestrator.Timeout)
	assert.Equal(t, "sequential", cfg.Orchestrator.Mode)
	assert.Equal(t, int64(30*1024*1024), cfg.Limits.MaxBytes)
	assert.Equal(t, []string{"wsrv", "statically"}, cfg.Relays.Enabled)
	assert.Equal(t, "auto", cfg.Codec.Backend)

	recipe, err := cfg.Recipe.TranscodeRecipe()
	require.NoError(t, err)
	assert.Equal(t, domain.TranscodeRecipe{
		Format:        domain.FormatAVIF,
		Width:         720,
		Quality:       25,
		Effort:        4,
		Chroma:        domain.ChromaFull,
		Trim:          true,
		TrimThreshold: 10,
	}, recipe)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9999"
log_level = "debug"

[orchestrator]
timeout = "3s"
mode = "rotate"
selector = "random"
seed = 7

[recipe]
format = "webp"
chroma = "4:2:0"

[relays]
enabled = ["photon"]

[relays.endpoints]
photon = "http://127.0.0.1:1234/"

[telegram]
enabled = true
bot_token = "123:abc"
stats_command = "/usage"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.Timeout)
	assert.Equal(t, "rotate", cfg.Orchestrator.Mode)
	assert.Equal(t, uint64(7), cfg.Orchestrator.Seed)
	assert.Equal(t, "webp", cfg.Recipe.Format)
	assert.Equal(t, 25, cfg.Recipe.Quality, "unset keys keep their defaults")
	assert.Equal(t, []string{"photon"}, cfg.Relays.Enabled)
	assert.Equal(t, "http://127.0.0.1:1234/", cfg.Relays.Endpoints["photon"])
	assert.Equal(t, "/usage", cfg.Telegram.StatsCommand)
	assert.Equal(t, "/shrink", cfg.Telegram.Command)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "[server]\naddr = \":1\"\n")
	t.Setenv("PIXRELAY_SERVER_ADDR", ":2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":2", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "broken toml", content: "[server\naddr="},
		{name: "unknown mode", content: "[orchestrator]\nmode = \"parallel\"\n"},
		{name: "unknown format", content: "[recipe]\nformat = \"bmp\"\n"},
		{name: "quality out of range", content: "[recipe]\nquality = 0\n"},
		{name: "negative timeout", content: "[orchestrator]\ntimeout = \"-1s\"\n"},
		{name: "telegram without token", content: "[telegram]\nenabled = true\n"},
		{name: "telegram command without slash", content: "[telegram]\nenabled = true\nbot_token = \"x\"\ncommand = \"shrink\"\n"},
		{name: "telegram commands collide", content: "[telegram]\nenabled = true\nbot_token = \"x\"\nstats_command = \"/shrink\"\n"},
		{name: "min above max", content: "[limits]\nmin_bytes = 10\nmax_bytes = 5\n"},
		{name: "bad log level", content: "[server]\nlog_level = \"loud\"\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "trace", want: zerolog.InfoLevel, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantErr, err != nil)
		})
	}
}
