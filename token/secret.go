package token

import (
	"bytes"
	"errors"
	"os"
)

// insecureDefaultSecret signs tokens when no secret file is deployed. It
// exists so development setups work out of the box; the engine logs a loud
// warning whenever it is in use.
var insecureDefaultSecret = []byte("authport-insecure-default-secret")

// LoadSecret reads the signing secret from path, once, at process start.
// A missing file is a degraded state, not a fatal one: the fixed insecure
// default is returned together with insecure=true and the caller is
// required to warn loudly. Any other read failure is fatal.
func LoadSecret(path string) (secret []byte, insecure bool, err error) {
	if path == "" {
		return insecureDefaultSecret, true, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return insecureDefaultSecret, true, nil
		}
		return nil, false, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return insecureDefaultSecret, true, nil
	}

	return trimmed, false, nil
}
