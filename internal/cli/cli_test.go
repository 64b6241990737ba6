package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes complaintctl with args and input against a fresh state directory.
func run(t *testing.T, dir, input string, args ...string) string {
	t.Helper()
	stateDir, reportDSN, catalogFile = "", "", ""
	reportLimit, simulateDryRun = 0, false

	t.Setenv("COMPLAINTDESK_STATE_DIR", dir)
	t.Setenv("REPORT_DSN", "")
	t.Setenv("CATALOG_FILE", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

var dialogue = strings.Join([]string{"/start", "1", "2", "Petr Petrov", "4", "18", "9", "44"}, "\n") + "\n"

func TestCategories(t *testing.T) {
	out := run(t, t.TempDir(), "", "categories")
	assert.Contains(t, out, "water_leak")
	assert.Contains(t, out, "Поломка лифта")
	assert.Equal(t, 7, strings.Count(out, "\n"))
}

func TestCategoriesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cats.yaml")
	require.NoError(t, writeFile(path, "categories:\n  - id: heating\n    label: Heating\n"))

	out := run(t, dir, "", "categories", "--catalog", path)
	assert.Contains(t, out, "heating")
	assert.NotContains(t, out, "water_leak")
}

func TestInitCreatesWorkbook(t *testing.T) {
	dir := t.TempDir()
	out := run(t, dir, "", "init")
	assert.Contains(t, out, "Report store ready (xlsx)")
	assert.FileExists(t, filepath.Join(dir, "complaints.xlsx"))
}

func TestSimulateStoresComplaint(t *testing.T) {
	dir := t.TempDir()
	out := run(t, dir, dialogue, "simulate")
	assert.Contains(t, out, "✅ Complaint submitted!")

	out = run(t, dir, "", "report")
	assert.Contains(t, out, "Petr Petrov")
	assert.Contains(t, out, "Поломка лифта")
	assert.Contains(t, out, "1 complaint(s)")
}

func TestSimulateDryRun(t *testing.T) {
	dir := t.TempDir()
	out := run(t, dir, dialogue, "simulate", "--dry-run")
	assert.Contains(t, out, "Dry run: 1 complaint(s) collected")
	assert.NoFileExists(t, filepath.Join(dir, "complaints.xlsx"))
}

func TestReportOnSQLite(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "complaints.db")
	run(t, dir, dialogue+dialogue, "simulate", "--report-dsn", dsn)

	out := run(t, dir, "", "report", "--report-dsn", dsn, "-n", "1")
	assert.Equal(t, 1, strings.Count(out, "Petr Petrov"))
	assert.Contains(t, out, "1 complaint(s)")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
