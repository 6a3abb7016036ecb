package download

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-errors/errors"
)

// maxRedirects bounds how many Location hops a single download will follow.
const maxRedirects = 5

// progressInterval throttles progress reporting so a UI can render a live
// bar without being flooded.
const progressInterval = 100 * time.Millisecond

// Progress is a snapshot of a running transfer. It only ever lives in
// process memory.
type Progress struct {
	Percent             float64 `json:"percent"`
	BytesReceived       int64   `json:"bytesReceived"`
	TotalBytes          int64   `json:"totalBytes"`
	SpeedBytesPerSecond float64 `json:"speedBytesPerSecond"`
}

// ProgressFunc receives throttled progress snapshots during a transfer,
// plus one unconditional snapshot for the final chunk.
type ProgressFunc func(Progress)

// Downloader streams single URLs to local files. It is stateless per call;
// permitting only one transfer at a time is the caller's concern.
type Downloader struct {
	client   *http.Client
	interval time.Duration
	log      Logger
}

type Config struct {
	// Client is the HTTP client used for transfers. Redirect handling is
	// always taken over by the downloader itself.
	Client *http.Client
	Logger Logger
}

func New(config *Config) *Downloader {
	d := &Downloader{
		interval: progressInterval,
		log:      noopLogger{},
	}

	client := http.DefaultClient
	if config != nil && config.Client != nil {
		client = config.Client
	}

	// Redirects are followed manually so the partial destination file can
	// be discarded between hops.
	clientCopy := *client
	clientCopy.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	d.client = &clientCopy

	if config != nil && config.Logger != nil {
		d.log = config.Logger
	}

	return d
}

// Download streams url to dest, following up to maxRedirects redirects.
// On stream errors the partial destination file is deleted and the error
// returned. On context cancellation the partial file is left in place so
// the caller can schedule it for cleanup.
func (d *Downloader) Download(ctx context.Context, url string, dest string, onProgress ProgressFunc) error {
	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Errorf("Could not create request for %v: %v", url, err)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return errors.Errorf("Could not download %v: %v", url, err)
		}

		if isRedirect(resp.StatusCode) {
			resp.Body.Close()

			// Discard whatever a previous hop may have written.
			os.Remove(dest)

			if hops >= maxRedirects {
				return errors.Errorf("Too many redirects downloading %v", url)
			}

			location, err := resp.Location()
			if err != nil {
				return errors.Errorf("Redirect without usable location from %v: %v", url, err)
			}

			d.log.Debugf("Following redirect to %v", location)

			url = location.String()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			os.Remove(dest)
			return errors.Errorf("Download of %v failed with status %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
		}

		return d.stream(ctx, resp, dest, onProgress)
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func (d *Downloader) stream(ctx context.Context, resp *http.Response, dest string, onProgress ProgressFunc) error {
	defer resp.Body.Close()

	file, err := os.Create(dest)
	if err != nil {
		return errors.Errorf("Could not create %v: %v", dest, err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	var received int64
	started := time.Now()
	var lastReport time.Time

	report := func() {
		if onProgress == nil {
			return
		}

		onProgress(snapshot(received, total, time.Since(started)))
	}

	buf := make([]byte, 32*1024)

	for {
		n, readErr := resp.Body.Read(buf)

		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				file.Close()
				os.Remove(dest)
				return errors.Errorf("Could not write to %v: %v", dest, writeErr)
			}

			received += int64(n)

			if time.Since(lastReport) >= d.interval {
				lastReport = time.Now()
				report()
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			file.Close()

			// A cancelled transfer leaves the partial file for the caller
			// to schedule for cleanup.
			if ctx.Err() != nil {
				return errors.Errorf("Download cancelled: %v", ctx.Err())
			}

			os.Remove(dest)
			return errors.Errorf("Download stream failed: %v", readErr)
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(dest)
		return errors.Errorf("Could not finish writing %v: %v", dest, err)
	}

	// The final chunk always gets a progress snapshot, throttle or not.
	report()

	return nil
}

func snapshot(received int64, total int64, elapsed time.Duration) Progress {
	progress := Progress{
		BytesReceived: received,
		TotalBytes:    total,
	}

	if total > 0 {
		progress.Percent = float64(received) / float64(total) * 100
	}

	if seconds := elapsed.Seconds(); seconds > 0 {
		progress.SpeedBytesPerSecond = float64(received) / seconds
	}

	return progress
}
