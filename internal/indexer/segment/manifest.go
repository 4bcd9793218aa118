package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
)

// Manifest describes one sealed generation. It is written last, so a
// generation directory without a manifest was never sealed.
type Manifest struct {
	Version    uint32                      `json:"version"`
	Generation uint64                      `json:"generation"`
	BuildID    string                      `json:"build_id"`
	Language   string                      `json:"language"`
	Analyzer   string                      `json:"analyzer"`
	DocCount   int                         `json:"doc_count"`
	TermCount  int                         `json:"term_count"`
	Fields     map[string]index.FieldStats `json:"fields"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func generationName(gen uint64) string {
	return fmt.Sprintf("gen-%06d", gen)
}

func parseGeneration(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, "gen-")
	if !ok {
		return 0, false
	}
	rest = strings.TrimSuffix(rest, buildingExt)
	gen, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// readCurrent returns the sealed generation named by CURRENT. ok is false if
// no index has been sealed in dir.
func readCurrent(dir string) (gen uint64, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reading %s: %w", currentFile, err)
	}
	gen, ok = parseGeneration(strings.TrimSpace(string(data)))
	if !ok {
		return 0, false, fmt.Errorf("malformed %s: %q", currentFile, strings.TrimSpace(string(data)))
	}
	return gen, true, nil
}

// writeCurrent atomically points CURRENT at gen via a temp file and rename.
func writeCurrent(dir string, gen uint64) error {
	tmp := filepath.Join(dir, currentFile+".tmp")
	if err := writeFileSync(tmp, []byte(generationName(gen)+"\n")); err != nil {
		return fmt.Errorf("writing %s: %w", currentFile, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, currentFile)); err != nil {
		return fmt.Errorf("renaming %s: %w", currentFile, err)
	}
	return syncDir(dir)
}

func writeManifest(genDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return writeFileSync(filepath.Join(genDir, manifestFile), data)
}

func readManifest(genDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(genDir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems reject fsync on directories; the rename is still
	// atomic there.
	_ = d.Sync()
	return nil
}
