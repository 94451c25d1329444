package config

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
)

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

func hashHex(s string) string {
	return strconv.FormatUint(hashBytes([]byte(s)), 16)
}
