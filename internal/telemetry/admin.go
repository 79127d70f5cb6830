package telemetry

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/swervesim/internal/httputil"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/security"
)

// AttachAdminRoutes mounts live SQL, a run listing and a gzipped backup
// under /debug/.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("telemetry: tailsql: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(s.path), s.DB, &tailsql.DBOptions{
		Label: "Swerve telemetry",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("runs", "Recorded runs (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireGET(w, r) {
			return
		}
		runs, err := s.Runs()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, runs)
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(s.serveBackup))
	return nil
}

func (s *Store) serveBackup(w http.ResponseWriter, r *http.Request) {
	base := security.SanitizeFilename(strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)))
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s-backup-%d.db", base, time.Now().UnixNano()))
	if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("telemetry: remove backup %s: %v", backupPath, err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		monitoring.Logf("telemetry: stream backup: %v", err)
	}
}
