package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbooks/recon/internal/activity"
	"github.com/fleetbooks/recon/internal/config"
	"github.com/fleetbooks/recon/internal/records"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "recon-test-*")
	if err != nil {
		panic(err)
	}

	binaryPath = filepath.Join(tmpDir, "recon")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/recon")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func runRecon(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "RECON_ACTOR=tester")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func initBooks(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out, err := runRecon(t, "init", dir, "--name", "Test Freight")
	require.NoError(t, err, out)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := initBooks(t)

	expectedDirs := []string{
		"records",
		"statements",
		filepath.Join("statements", "processed"),
		"ledger",
		"logs",
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir := initBooks(t)

	cfg, err := config.Load(filepath.Join(dir, "recon.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Test Freight", cfg.Business.Name)
	assert.Equal(t, config.MatcherHeuristic, cfg.Matcher.Kind)
	assert.Equal(t, config.BackendCSV, cfg.Store.Backend)
}

func TestInit_EmptyRecords(t *testing.T) {
	dir := initBooks(t)

	svc := records.NewService(dir)
	invoices, err := svc.Invoices()
	require.NoError(t, err)
	assert.Empty(t, invoices)

	data, err := os.ReadFile(filepath.Join(dir, "records", "expenses.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,date,vendor,category,amount,notes\n", string(data))
}

func TestInit_GitRepo(t *testing.T) {
	dir := initBooks(t)

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git should exist")

	log := exec.Command("git", "log", "--format=%s|%an <%ae>", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "init: Initialize Test Freight")
	assert.Contains(t, string(out), "Recon <recon@fleetbooks.local>")
}

func TestInit_ActivityLog(t *testing.T) {
	dir := initBooks(t)

	entries, err := activity.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionInit, entries[0].Action)
	assert.Equal(t, "tester", entries[0].Actor)
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runRecon(t, "init", t.TempDir())
	require.Error(t, err, "init without --name should fail")
}

func TestInit_RefusesExistingBooks(t *testing.T) {
	dir := initBooks(t)
	out, err := runRecon(t, "init", dir, "--name", "Again")
	require.Error(t, err)
	assert.Contains(t, out, "already contains recon.yaml")
}

func TestCommands_OutsideBooks(t *testing.T) {
	out, err := runRecon(t, "ledger", "--books", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "is not a books directory")
}
