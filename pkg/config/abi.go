package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// LoadABI reads a contract ABI from path. The file may hold the bare ABI array or a
// build artifact (Hardhat, Foundry, Truffle) with the array under an "abi" key.
func LoadABI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read abi file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return string(trimmed), nil
	}

	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(trimmed, &artifact); err != nil {
		return "", fmt.Errorf("failed to parse abi file: %w", err)
	}
	if len(artifact.ABI) == 0 {
		return "", fmt.Errorf("abi file %s has no abi field", path)
	}
	return string(artifact.ABI), nil
}
