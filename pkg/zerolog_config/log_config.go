package zerolog_config

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var appPrefix string
var setAppPrefixOnce = &sync.Once{}
var startupLoggerOnce = &sync.Once{}

var esHTTPClient = &http.Client{Timeout: 5 * time.Second}

// ElasticsearchWriter sends each log record to an Elasticsearch index
type ElasticsearchWriter struct {
	URL string
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	resp, err := esHTTPClient.Post(
		ew.URL+"/_doc",
		"application/json",
		bytes.NewReader(p),
	)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

// parseLevel falls back to info for an empty or unknown level
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// newLogger builds the global logger. console receives pretty output; es, when
// non-nil, receives ECS records.
func newLogger(console io.Writer, es io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	if es == nil {
		return zerolog.New(consoleWriter).With().Str("app", appPrefix).Timestamp().Logger()
	}

	ecsLogger := ecszerolog.New(es)
	multi := zerolog.MultiLevelWriter(ecsLogger, consoleWriter)
	return zerolog.New(multi).With().Str("app", appPrefix).Timestamp().Logger()
}

func startupLoggerWithEnv(elasticsearchURL, index, level string) {
	zerolog.SetGlobalLevel(parseLevel(level))

	if elasticsearchURL == "" {
		log.Logger = newLogger(os.Stdout, nil)
		return
	}

	log.Logger = newLogger(os.Stdout, &ElasticsearchWriter{
		URL: strings.TrimRight(elasticsearchURL, "/") + "/" + index,
	})
}

// SetAppPrefix sets the app field carried by every record
func SetAppPrefix(name string) {
	setAppPrefixOnce.Do(func() {
		appPrefix = name
	})
}

// StartupWithEnv sets up the global logger once. An empty elasticsearchURL
// logs to the console only. Run SetAppPrefix before StartupWithEnv.
func StartupWithEnv(elasticsearchURL, index, level string) error {
	if index == "" {
		return fmt.Errorf("index is required")
	}
	startupLoggerOnce.Do(func() {
		startupLoggerWithEnv(elasticsearchURL, index, level)
	})
	return nil
}
