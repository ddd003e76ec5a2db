package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "ddpctl":
		return ddpctlTemplate, nil
	case "fakeroom":
		return fakeroomTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const ddpctlTemplate = `node = "ddpctl"
endpoint = "ws://localhost:3000/websocket"
versions = ["1", "pre2", "pre1"]
raw_echo = false
call_timeout = "20s"
# metrics_addr = ":9400"
# cors_origins = ["http://localhost:3000"]

[transport]
connect_timeout = "5s"
handshake_timeout = "5s"
write_timeout = "15s"
max_connect_attempts = 1
`

const fakeroomTemplate = `node = "fakeroom"
endpoint = "ws://localhost:3000/websocket"
raw_echo = true
call_timeout = "20s"

[transport]
max_connect_attempts = 5
backoff_initial = "250ms"
backoff_multiplier = 2.0
backoff_max = "5s"
backoff_jitter = true

[room]
method = "insertMap"
seed = 0
`
