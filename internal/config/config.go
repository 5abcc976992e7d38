package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
)

type Config struct {
	CapturesDir    string
	DBPath         string
	SettingsFile   string
	CameraBackend  string
	CameraURLs     []string
	CameraDevices  int
	CameraRes      string
	BurstCount     int
	PreviewBackend string
	PreviewAddr    string
	PreviewWidth   int
	EnrichBackend  string
	ClaudeAPIKey   string
	ClaudeModel    string
	OllamaHost     string
	OllamaModel    string
	RemoteBaseURL  string
	RemoteAPIKey   string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3UseSSL       bool
	S3PublicURL    string
	LogLevel       string
	LogFile        string

	// Warnings collects non-fatal problems found while loading.
	Warnings []string
}

func Load() *Config {
	captures := getEnv("SHELFSHOT_CAPTURES_DIR", "./captures")
	cfg := &Config{
		CapturesDir:    captures,
		DBPath:         getEnv("SHELFSHOT_DB_PATH", filepath.Join(captures, "index.db")),
		SettingsFile:   getEnv("SHELFSHOT_SETTINGS_FILE", filepath.Join(captures, "settings.yaml")),
		CameraBackend:  getEnv("CAMERA_BACKEND", "pattern"),
		CameraURLs:     parseList(getEnv("CAMERA_URLS", "")),
		CameraRes:      getEnv("CAMERA_RESOLUTION", fmt.Sprintf("%dx%d", defaultWidth, defaultHeight)),
		PreviewBackend: getEnv("PREVIEW_BACKEND", "web"),
		PreviewAddr:    getEnv("PREVIEW_ADDR", "127.0.0.1:8090"),
		EnrichBackend:  getEnv("ENRICH_BACKEND", "none"),
		ClaudeAPIKey:   getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:    getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llava"),
		RemoteBaseURL:  getEnv("REMOTE_BASE_URL", ""),
		RemoteAPIKey:   getEnv("REMOTE_API_KEY", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("S3_BUCKET", "shelfshot"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3PublicURL:    getEnv("S3_PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
	cfg.CameraDevices = cfg.intEnv("CAMERA_DEVICES", 2)
	cfg.BurstCount = cfg.intEnv("BURST_COUNT", 10)
	cfg.PreviewWidth = cfg.intEnv("PREVIEW_WIDTH", 640)
	cfg.S3UseSSL = getEnv("S3_USE_SSL", "true") == "true"
	return cfg
}

// Resolution parses CameraRes as WxH. Malformed values fall back to the
// default and are recorded in Warnings.
func (c *Config) Resolution() (int, int) {
	w, h, ok := parseResolution(c.CameraRes)
	if !ok {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid CAMERA_RESOLUTION %q, using %dx%d", c.CameraRes, defaultWidth, defaultHeight))
		return defaultWidth, defaultHeight
	}
	return w, h
}

// OnlineReady reports whether committed images can be uploaded.
func (c *Config) OnlineReady() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) intEnv(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %d", key, raw, def))
		return def
	}
	return v
}

func parseResolution(s string) (int, int, bool) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, false
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
