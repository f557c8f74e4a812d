// File: cmd/helpers.go
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/erppilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// loadScript reads and decodes an automation script from a JSON file.
func loadScript(path string) (*schemas.AutomationScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	var script schemas.AutomationScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to decode script file %s: %w", path, err)
	}
	return &script, nil
}

// loadConnection reads and decodes a connection definition from a JSON file.
func loadConnection(path string) (schemas.Connection, error) {
	var conn schemas.Connection
	data, err := os.ReadFile(path)
	if err != nil {
		return conn, fmt.Errorf("failed to read connection file: %w", err)
	}
	if err := json.Unmarshal(data, &conn); err != nil {
		return conn, fmt.Errorf("failed to decode connection file %s: %w", path, err)
	}
	if conn.BaseURL == "" {
		return conn, fmt.Errorf("connection file %s has no baseUrl", path)
	}
	return conn, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
