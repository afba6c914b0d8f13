package cases

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// CompressPayload gzips questionnaire text for storage. Payloads are kept
// compressed at rest and shipped compressed between repository and sync
// service; only the wire boundary and the blob breakout ever inflate them.
func CompressPayload(questionnaire string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(questionnaire)); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressPayload inflates a stored payload back to questionnaire text.
func DecompressPayload(payload []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("decompress payload: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decompress payload: %w", err)
	}
	return string(data), nil
}
