package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/shelfshot/internal/domain"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.CapturesDir)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 10, cfg.BurstCount)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("SHELFSHOT_CAPTURES_DIR", "/data/captures")
	t.Setenv("CAMERA_BACKEND", "mjpeg")
	t.Setenv("CAMERA_URLS", "http://cam1/stream, http://cam2/stream,")
	t.Setenv("BURST_COUNT", "5")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("S3_USE_SSL", "false")

	cfg := Load()

	assert.Equal(t, "/data/captures", cfg.CapturesDir)
	assert.Equal(t, filepath.Join("/data/captures", "index.db"), cfg.DBPath)
	assert.Equal(t, "mjpeg", cfg.CameraBackend)
	assert.Equal(t, []string{"http://cam1/stream", "http://cam2/stream"}, cfg.CameraURLs)
	assert.Equal(t, 5, cfg.BurstCount)
	assert.False(t, cfg.S3UseSSL)
	assert.True(t, cfg.OnlineReady())
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("BURST_COUNT", "lots")

	cfg := Load()

	assert.Equal(t, 10, cfg.BurstCount)
	assert.Len(t, cfg.Warnings, 1)
}

func TestResolution(t *testing.T) {
	tests := []struct {
		raw          string
		wantW, wantH int
		wantWarning  bool
	}{
		{raw: "1920x1080", wantW: 1920, wantH: 1080},
		{raw: " 640X480 ", wantW: 640, wantH: 480},
		{raw: "wide", wantW: defaultWidth, wantH: defaultHeight, wantWarning: true},
		{raw: "0x10", wantW: defaultWidth, wantH: defaultHeight, wantWarning: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cfg := &Config{CameraRes: tt.raw}
			w, h := cfg.Resolution()
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantWarning, len(cfg.Warnings) > 0)
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.yaml")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	want := domain.Settings{
		Marketplace:         "EBAY_GB",
		MerchantLocationKey: "warehouse-1",
		PaymentPolicyID:     "pay-9",
	}
	require.NoError(t, SaveSettings(path, want))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSettingsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("marketplace: [unclosed"), 0600))

	s, err := LoadSettings(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultMarketplace, s.Marketplace)
}
