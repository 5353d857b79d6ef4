package describer

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/spherical/pdf-describer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLiveOllama runs the pipeline against a real Ollama server. It needs
// DESCRIBER_LIVE_PDF pointing at a document and a reachable endpoint.
func TestLiveOllama(t *testing.T) {
	_ = godotenv.Load("../../.env")

	pdfPath := os.Getenv("DESCRIBER_LIVE_PDF")
	if pdfPath == "" {
		t.Skip("DESCRIBER_LIVE_PDF not set")
	}

	cfg, err := config.Load("")
	require.NoError(t, err)
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(cfg.Inference.Host, strconv.Itoa(cfg.Inference.Port)), 2*time.Second)
	if err != nil {
		t.Skipf("Ollama not reachable at %s: %v", cfg.Inference.URL(), err)
	}
	conn.Close()
	cfg.Output.RootDir = t.TempDir()

	client, err := NewClientWithConfig(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	results, err := client.ProcessDocument(ctx, pdfPath, Options{StartPage: 1, EndPage: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].ImageDescription.IsDegraded(), "description: %s", results[0].ImageDescription)
	t.Logf("Page 1 description: %s", results[0].ImageDescription)
}
