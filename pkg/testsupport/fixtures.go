package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"
)

// LoadFixture reads testdata/name from the calling package.
func LoadFixture(t testing.TB, name string) []byte {
	t.Helper()

	path := FixturePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", path, err)
	}
	return data
}

// FixtureResponse returns the raw `response` member of an API envelope
// fixture, so tests can serve or decode the rows without the meta block.
func FixtureResponse(t testing.TB, name string) []byte {
	t.Helper()

	body := LoadFixture(t, name)
	if !gjson.ValidBytes(body) {
		t.Fatalf("fixture %s is not valid JSON", name)
	}
	response := gjson.GetBytes(body, "response")
	if !response.Exists() {
		t.Fatalf("fixture %s has no response member", name)
	}
	return []byte(response.Raw)
}

// AssertGolden compares actual with testdata/golden/name. A missing golden
// file is written from actual so new cases can be recorded.
func AssertGolden(t testing.TB, name string, actual []byte) {
	t.Helper()

	path := GoldenPath(name)
	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Logf("golden file %s does not exist, creating it", path)
		writeGolden(t, path, actual)
		return
	}
	if err != nil {
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if diff := cmp.Diff(string(expected), string(actual)); diff != "" {
		t.Errorf("output mismatch for %s (-want +got):\n%s", path, diff)
	}
}

func writeGolden(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create golden directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write golden file %s: %v", path, err)
	}
}

// FixturePath is the location of a fixture in the package's testdata.
func FixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// GoldenPath is the location of a golden file in the package's testdata.
func GoldenPath(name string) string {
	return filepath.Join("testdata", "golden", name)
}
