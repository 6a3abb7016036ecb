package updater

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roster-land/rosterd/installer"
	"github.com/roster-land/rosterd/platform"
	"github.com/roster-land/rosterd/remote"
	"github.com/roster-land/rosterd/updatedb"
)

type fakeChecker struct {
	result *remote.CheckResult
	err    error
}

func (f *fakeChecker) Check(platformName string, currentVersion string) (*remote.CheckResult, error) {
	return f.result, f.err
}

type fakeRunner struct {
	started     string
	startedArgs []string
	opened      string
}

func (r *fakeRunner) StartDetached(name string, args []string) error {
	r.started = name
	r.startedArgs = args
	return nil
}

func (r *fakeRunner) Open(path string) error {
	r.opened = path
	return nil
}

func newTestUpdater(t *testing.T, checker remote.Checker) (*Updater, *updatedb.DB) {
	t.Helper()

	dir := t.TempDir()

	db, err := updatedb.Open(dir, nil)
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	u := New(&Config{
		DB:             db,
		Checker:        checker,
		Platform:       platform.Windows,
		CurrentVersion: "1.0.0",
		TempDir:        filepath.Join(dir, "updates"),
	})

	return u, db
}

func waitForCompletion(t *testing.T, client *EventsClient) *DownloadResult {
	t.Helper()

	deadline := time.After(5 * time.Second)

	for {
		select {
		case event := <-client.Events:
			if event.Type == EventTypeCompleted {
				return event.Result
			}
		case <-deadline:
			t.Fatal("timed out waiting for download completion")
		}
	}
}

func TestCheckDownloadInstallFlow(t *testing.T) {
	content := bytes.Repeat([]byte("r"), 1000)
	sum := sha256.Sum256(content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Write(content)
	}))
	defer server.Close()

	checker := &fakeChecker{
		result: &remote.CheckResult{
			Success:         true,
			UpdateAvailable: true,
			Version:         "2.0.0",
			DownloadURL:     server.URL,
			FileSize:        int64(len(content)),
			Checksum:        hex.EncodeToString(sum[:]),
		},
	}

	u, db := newTestUpdater(t, checker)

	check := u.CheckForUpdates()
	if !check.Success || !check.UpdateAvailable || check.Version != "2.0.0" {
		t.Fatalf("unexpected check result %+v", check)
	}

	if check.AlreadyDownloaded {
		t.Error("expected nothing downloaded yet")
	}

	config := db.GetConfig()
	if config.AvailableUpdate == nil || config.AvailableUpdate.Version != "2.0.0" {
		t.Fatalf("check did not persist the available update: %+v", config.AvailableUpdate)
	}

	// The generated file name carries the platform extension.
	if config.AvailableUpdate.FileName != "update-2.0.0.exe" {
		t.Errorf("unexpected file name %q", config.AvailableUpdate.FileName)
	}

	client := u.SubscribeEvents()
	defer client.Cancel()

	// No arguments: the persisted available update supplies URL and name.
	start := u.StartDownload("", "")
	if !start.Success || !start.Started {
		t.Fatalf("unexpected start result %+v", start)
	}

	result := waitForCompletion(t, client)
	if !result.Success || !result.Verified {
		t.Fatalf("unexpected download result %+v", result)
	}

	if !db.IsUpdateDownloaded() {
		t.Error("expected the update to be recorded as downloaded")
	}

	if !db.ValidateDownloadedFile() {
		t.Error("expected the downloaded file to validate")
	}

	// A new download request now short-circuits without a transfer and
	// pushes a completion event saying so.
	again := u.StartDownload("", "")
	if !again.Success || !again.AlreadyDownloaded {
		t.Fatalf("expected an already-downloaded result, got %+v", again)
	}

	skipped := waitForCompletion(t, client)
	if !skipped.Success || !skipped.AlreadyDownloaded || skipped.DownloadPath != result.DownloadPath {
		t.Fatalf("unexpected skip event %+v", skipped)
	}

	runner := &fakeRunner{}
	u.launcher = installer.New(&installer.Config{Runner: runner})

	install := u.InstallAndRestart("")
	if !install.Success {
		t.Fatalf("unexpected install result %+v", install)
	}

	if runner.started != result.DownloadPath {
		t.Errorf("expected installer %q to be started, got %q", result.DownloadPath, runner.started)
	}

	config = db.GetConfig()
	if config.AvailableUpdate != nil || config.Download.IsDownloaded {
		t.Error("expected offer and download state to be cleared after dispatch")
	}

	found := false
	for _, p := range db.GetFilesToCleanup() {
		if p == result.DownloadPath {
			found = true
		}
	}
	if !found {
		t.Error("expected the artifact to be scheduled for cleanup")
	}
}

func TestStartDownloadWithoutInfo(t *testing.T) {
	u, _ := newTestUpdater(t, &fakeChecker{})

	result := u.StartDownload("", "")
	if result.Success || result.Error != "No download information available" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSecondDownloadRejected(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Length", "100000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		flusher.Flush()

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	u, _ := newTestUpdater(t, &fakeChecker{})

	first := u.StartDownload(server.URL, "update-2.0.0.exe")
	if !first.Success || !first.Started {
		t.Fatalf("unexpected first result %+v", first)
	}

	second := u.StartDownload(server.URL, "update-2.0.0.exe")
	if second.Success || second.Error != "Download already in progress" {
		t.Fatalf("unexpected second result %+v", second)
	}

	u.CancelDownload()
}

func TestCancelDownloadFreesSlot(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Length", "100000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		flusher.Flush()

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	u, db := newTestUpdater(t, &fakeChecker{})

	start := u.StartDownload(server.URL, "update-2.0.0.exe")
	if !start.Started {
		t.Fatalf("unexpected start result %+v", start)
	}

	time.Sleep(150 * time.Millisecond)

	u.CancelDownload()

	if u.GetDownloadProgress() != nil {
		t.Error("expected no progress after cancellation")
	}

	// The partial file is scheduled for removal.
	expected := filepath.Join(u.tempDir, "update-2.0.0.exe")
	found := false
	for _, p := range db.GetFilesToCleanup() {
		if p == expected {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %v in the cleanup list", expected)
	}

	// Cancelling again is harmless.
	u.CancelDownload()

	// The slot is free for the next attempt.
	next := u.StartDownload(server.URL, "update-2.0.0.exe")
	if !next.Success || !next.Started {
		t.Fatalf("expected the slot to be free, got %+v", next)
	}

	u.CancelDownload()
}

func TestCompletionAfterCancelIsDiscarded(t *testing.T) {
	content := []byte("raced bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Write(content)
	}))
	defer server.Close()

	u, db := newTestUpdater(t, &fakeChecker{})

	if err := os.MkdirAll(u.tempDir, 0700); err != nil {
		t.Fatalf("could not create temp dir: %v", err)
	}

	client := u.SubscribeEvents()
	defer client.Cancel()

	// A cancellation can release the slot, clear the persisted state and
	// schedule the file for cleanup while the transfer is on its very
	// last chunk. The transfer then finishes without holding the slot.
	dest := filepath.Join(u.tempDir, "update-2.0.0.exe")
	db.AddToCleanupList(dest)

	tr := &transfer{
		id:     "raced",
		url:    server.URL,
		dest:   dest,
		cancel: func() {},
	}

	u.runTransfer(context.Background(), tr)

	if db.IsUpdateDownloaded() {
		t.Error("expected the cancelled transfer not to record a download")
	}

	result := waitForCompletion(t, client)
	if result.Success || result.Error != "Download cancelled" {
		t.Errorf("unexpected completion event %+v", result)
	}
}

func TestStaleArtifactNotSkipped(t *testing.T) {
	content := []byte("new version bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Write(content)
	}))
	defer server.Close()

	u, db := newTestUpdater(t, &fakeChecker{})

	// A download of the previous version survives on disk.
	if err := os.MkdirAll(u.tempDir, 0700); err != nil {
		t.Fatalf("could not create temp dir: %v", err)
	}

	oldArtifact := filepath.Join(u.tempDir, "update-1.0.0.exe")
	if err := os.WriteFile(oldArtifact, []byte("old version bytes"), 0600); err != nil {
		t.Fatalf("could not write artifact: %v", err)
	}

	db.SetAvailableUpdate(&updatedb.AvailableUpdate{Version: "1.0.0", FileName: "update-1.0.0.exe"})
	db.SetDownloadCompleted(oldArtifact)

	// A new offer arrives without size or checksum, so validation alone
	// cannot tell the old artifact from the new one.
	db.SetAvailableUpdate(&updatedb.AvailableUpdate{
		Version:     "2.0.0",
		DownloadURL: server.URL,
		FileName:    "update-2.0.0.exe",
	})

	client := u.SubscribeEvents()
	defer client.Cancel()

	start := u.StartDownload("", "")
	if !start.Started || start.AlreadyDownloaded {
		t.Fatalf("expected a fresh transfer for the new version, got %+v", start)
	}

	result := waitForCompletion(t, client)
	if !result.Success {
		t.Fatalf("unexpected download result %+v", result)
	}

	if filepath.Base(result.DownloadPath) != "update-2.0.0.exe" {
		t.Errorf("unexpected download path %q", result.DownloadPath)
	}
}

func TestInstallAndRestartWithoutDownload(t *testing.T) {
	u, _ := newTestUpdater(t, &fakeChecker{})

	result := u.InstallAndRestart("")
	if result.Success || result.Error != "No update downloaded" {
		t.Fatalf("unexpected result %+v", result)
	}

	result = u.InstallAndRestart(filepath.Join(t.TempDir(), "gone.exe"))
	if result.Success || result.Error != "Installer file missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSetInstallPreference(t *testing.T) {
	u, db := newTestUpdater(t, &fakeChecker{})

	if err := u.SetInstallPreference(updatedb.InstallOnClose); err != nil {
		t.Fatalf("could not set preference: %v", err)
	}

	if got := db.GetConfig().Preferences.InstallOn; got != updatedb.InstallOnClose {
		t.Errorf("unexpected persisted preference %q", got)
	}

	if err := u.SetInstallPreference("whenever"); err == nil {
		t.Error("expected an unknown preference to be rejected")
	}
}

func TestCleanupPass(t *testing.T) {
	u, db := newTestUpdater(t, &fakeChecker{})

	parent := filepath.Join(t.TempDir(), "stale-updates")
	if err := os.MkdirAll(parent, 0700); err != nil {
		t.Fatalf("could not create directory: %v", err)
	}

	existing := filepath.Join(parent, "update-1.0.0.exe")
	if err := os.WriteFile(existing, []byte("old"), 0600); err != nil {
		t.Fatalf("could not write file: %v", err)
	}

	db.AddToCleanupList("/nonexistent/one")
	db.AddToCleanupList("/nonexistent/two")
	db.AddToCleanupList(existing)

	u.ReconcileStartup()

	if _, err := os.Stat(existing); !os.IsNotExist(err) {
		t.Error("expected the stale file to be removed")
	}

	if _, err := os.Stat(parent); !os.IsNotExist(err) {
		t.Error("expected the empty parent directory to be removed")
	}

	if db.NeedsCleanup() {
		t.Error("expected the cleanup flag to be cleared")
	}

	if len(db.GetFilesToCleanup()) != 0 {
		t.Error("expected the cleanup list to be empty")
	}
}

func TestStartupReconciliationRevalidates(t *testing.T) {
	u, db := newTestUpdater(t, &fakeChecker{})

	db.SetAvailableUpdate(&updatedb.AvailableUpdate{Version: "2.0.0", FileSize: 10})
	db.SetDownloadCompleted(filepath.Join(t.TempDir(), "gone.exe"))

	u.ReconcileStartup()

	if db.IsUpdateDownloaded() {
		t.Error("expected the stale download record to be cleared at startup")
	}
}
