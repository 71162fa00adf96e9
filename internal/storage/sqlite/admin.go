package sqlite

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/autoaim/internal/httputil"
	"github.com/banshee-data/autoaim/internal/monitoring"
)

// AttachAdminRoutes mounts a read-only SQL console and a backup download on
// the debug handler.
func (db *DB) AttachAdminRoutes(debug *tsweb.DebugHandler) error {
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Aim session DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "autoaim-backup")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("create backup dir: %v", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			monitoring.Logf("failed to remove backup dir: %v", err)
		}
	}()

	name := fmt.Sprintf("autoaim-backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("create backup: %v", err))
		return
	}

	f, err := os.Open(backupPath)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("open backup file: %v", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Logf("backup copy: %v", err)
	}
}
