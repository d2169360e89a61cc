package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"voxelforge/internal/persistence/mirror"
)

// buildMirror configures the optional region mirror from the
// environment. Disabled unless VF_MIRROR=true.
func buildMirror(logger *log.Logger) (*mirror.Mirror, error) {
	if !envBool("VF_MIRROR", false) {
		return nil, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("VF_MIRROR_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("VF_MIRROR_BUCKET"))
	accessKeyID := strings.TrimSpace(os.Getenv("VF_MIRROR_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("VF_MIRROR_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("VF_MIRROR_PREFIX"))

	if endpoint == "" || bucket == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("VF_MIRROR=true but VF_MIRROR_ENDPOINT/VF_MIRROR_BUCKET/VF_MIRROR_ACCESS_KEY_ID/VF_MIRROR_SECRET_ACCESS_KEY are not fully set")
	}

	client, err := mirror.NewClient(endpoint, bucket, accessKeyID, secretAccessKey)
	if err != nil {
		return nil, err
	}
	workers := envInt("VF_MIRROR_WORKERS", 2)
	return mirror.New(client, prefix, workers, logger), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
