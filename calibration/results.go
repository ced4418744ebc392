package calibration

import (
	"os"

	"github.com/xhhuango/json"
)

// SaveJSON writes a backtest result series to disk as indented JSON.
// Persistence of calibrated parameters over time is the caller's concern;
// this is just the dump format.
func SaveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
