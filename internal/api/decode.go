package api

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/optix-bridge/optix-bridge/internal/pipeline"
)

// decodeBatches accepts either a single JSON object or an array of objects.
func decodeBatches(r io.Reader, out *[]pipeline.DetectionBatch) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, out)
	}

	var batch pipeline.DetectionBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return err
	}
	*out = []pipeline.DetectionBatch{batch}
	return nil
}
