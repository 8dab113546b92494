package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLine = "badges=;color=;display-name=Viewer;emotes=25:0-4;id=abc;room-id=22484632;tmi-sent-ts=1690000000000;user-id=4242" +
	" :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #forsen :Kappa hi\n"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "CHATCONV_") {
			t.Setenv(name, "")
		}
	}
	t.Setenv("CHATCONV_CONFIG", "")
}

func TestRunUsageErrors(t *testing.T) {
	clearEnv(t)
	cases := map[string][]string{
		"no input":      nil,
		"two inputs":    {"a.txt", "b.txt"},
		"unknown flag":  {"-nope", "a.txt"},
		"bad log level": {"-log-level", "loud", "a.txt"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), args, &stdout, &stderr)
			assert.Equal(t, exitUsage, code)
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "chatconv version: dev"))
}

func TestRunConvertsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(input, []byte(sampleLine), 0o600))
	db := filepath.Join(dir, "archive.db")
	prom := filepath.Join(dir, "chatconv.prom")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-log-format", "json",
		"-sqlite", db,
		"-metrics-file", prom,
		input,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	data, err := os.ReadFile(filepath.Join(dir, "chat_new.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"emoticon_id": "25"`)
	assert.Contains(t, stderr.String(), `"msg":"chatconv: wrote archive"`)

	_, err = os.Stat(db)
	assert.NoError(t, err)
	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "chatconv_comments_total 1")
}

func TestRunMissingInputFails(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-log-format", "text", filepath.Join(t.TempDir(), "nope.txt")}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "conversion failed")
}

func TestRunFlagsOverrideConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(input, []byte(sampleLine), 0o600))
	cfgPath := filepath.Join(dir, "chatconv.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("channel: xqc\noutput: "+filepath.Join(dir, "from-config.json")+"\n"), 0o600))
	out := filepath.Join(dir, "from-flag.json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "-out", out, "-channel", "forsen", "-log-format", "json", input}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "forsen"`)
	_, err = os.Stat(filepath.Join(dir, "from-config.json"))
	assert.True(t, os.IsNotExist(err))
}
