package config

import "os"

func IsDebug() bool {
	return os.Getenv("CNAPSE_DEBUG") == "1"
}
