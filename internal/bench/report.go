package bench

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names written by WriteArtifacts. Hashing covers all of them.
var artifactFiles = []string{
	"scenario.json",
	"dataset_spec.json",
	"environment.json",
	"truth.json",
	"results.json",
	"receipt_energy.json",
}

// WriteArtifacts exports a run to a directory of JSON files plus a manifest
// of their SHA-256 hashes, so published results can be verified without
// trusting the publisher.
func WriteArtifacts(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, "scenario.json"), report.Scenario); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "dataset_spec.json"), report.DatasetSpec); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "environment.json"), report.Environment); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "truth.json"), report.Truth); err != nil {
		return err
	}
	results := struct {
		RunID   string  `json:"run_id"`
		Results Results `json:"results"`
	}{RunID: report.RunID, Results: report.Results}
	if err := writeJSON(filepath.Join(dir, "results.json"), results); err != nil {
		return err
	}
	if report.Receipt != nil {
		if err := writeJSON(filepath.Join(dir, "receipt_energy.json"), report.Receipt); err != nil {
			return err
		}
	}

	hashes := make(map[string]string)
	for _, name := range artifactFiles {
		path := filepath.Join(dir, name)
		digest, err := sha256Hex(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("hash %s: %w", name, err)
		}
		hashes[name] = digest
	}
	return writeJSON(filepath.Join(dir, "receipt_hashes.json"), hashes)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func sha256Hex(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
