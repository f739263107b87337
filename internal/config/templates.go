package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bridge":
		return bridgeTemplate, nil
	case "run":
		return runTemplate, nil
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

const bridgeTemplate = `name = "rollbridge"

[session]
max_prediction = 8
fps = 60
num_players = 2
sparse_saving = false
input_delay = 0
check_distance = 0

[log]
level = "info"
timestamp = true
no_color = false
file = ""
max_size_mb = 50
max_backups = 3
compress = false

[inspect]
enabled = false
addr = "127.0.0.1:9400"
cors_origins = ["http://localhost:3000"]
token = ""
`

const runTemplate = `profile = "cmd/rollbridge/bridge.toml"
mode = "synctest"
frames = 600
tick = "16ms"
check_distance = 2
inspect = false
`
