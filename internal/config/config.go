package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultSTUN        = "stun:stun.l.google.com:19302"
)

// Config holds the application configuration.
type Config struct {
	// RendezvousURL is the websocket URL of the rendezvous/identity service.
	RendezvousURL string
	// GeminiAPIKey enables the generation/evaluation oracle. When empty the
	// oracle serves its fixed fallbacks.
	GeminiAPIKey string
	GeminiModel  string
	// STUNServers are the ICE servers used for both peer connections.
	STUNServers []string
	// CaptureH264 and CapturePCMU are optional paths (file or FIFO) to raw
	// Annex-B H264 and raw PCMU capture sources. When both are empty, local
	// capture is unavailable and the session runs data-only.
	CaptureH264 string
	CapturePCMU string
	// RemoteH264 is an optional path the remote peer's H264 video is
	// written to as an Annex-B stream, for playback by an external player.
	RemoteH264 string
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	rendezvous := os.Getenv("PAIRDESK_RENDEZVOUS_URL")
	if rendezvous == "" {
		return nil, fmt.Errorf("PAIRDESK_RENDEZVOUS_URL environment variable is required")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
	}

	stun := os.Getenv("PAIRDESK_STUN")
	if stun == "" {
		stun = defaultSTUN
	}
	var servers []string
	for _, s := range strings.Split(stun, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}

	return &Config{
		RendezvousURL: rendezvous,
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   model,
		STUNServers:   servers,
		CaptureH264:   os.Getenv("PAIRDESK_CAPTURE_H264"),
		CapturePCMU:   os.Getenv("PAIRDESK_CAPTURE_PCMU"),
		RemoteH264:    os.Getenv("PAIRDESK_REMOTE_H264"),
	}, nil
}
