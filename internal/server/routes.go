// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/surveyth/cadastre-engine/internal/crop"
	"github.com/surveyth/cadastre-engine/internal/deedfile"
	"github.com/surveyth/cadastre-engine/internal/editor"
	"github.com/surveyth/cadastre-engine/pkg/types"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/scans", s.handleListScans)
	mux.HandleFunc("GET /api/scans/{base}/image", s.handleScanImage)
	mux.HandleFunc("GET /api/scans/{base}/records", s.handleRecords)
	mux.HandleFunc("GET /api/scans/{base}/plot", s.handlePlot)
	mux.HandleFunc("POST /api/scans/{base}/crop", s.handleCrop)
	mux.HandleFunc("POST /api/scans/{base}/extract", s.handleExtract)
	mux.HandleFunc("POST /api/scans/{base}/markers", s.handleAddMarker)
	mux.HandleFunc("PUT /api/scans/{base}/markers/{pointID}", s.handleUpdateMarker)
	mux.HandleFunc("DELETE /api/scans/{base}/markers/{pointID}", s.handleDeleteMarker)
	mux.HandleFunc("POST /api/scans/{base}/save", s.handleSave)
}

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Folder string `json:"folder"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Folder: s.folder})
}

// ScanInfo describes one scan and which pipeline artifacts exist for it.
type ScanInfo struct {
	Base      string `json:"base"`
	Path      string `json:"path"`
	Cropped   bool   `json:"cropped"`
	Extracted bool   `json:"extracted"`
	Edited    bool   `json:"edited"`
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := deedfile.DiscoverScans(s.folder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]ScanInfo, 0, len(scans))
	for _, scan := range scans {
		dir, base := deedfile.Split(scan)
		infos = append(infos, ScanInfo{
			Base:      base,
			Path:      scan,
			Cropped:   fileExists(deedfile.TablePath(dir, base)),
			Extracted: fileExists(deedfile.OCRPath(dir, base)),
			Edited:    fileExists(deedfile.EditPath(dir, base)),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleScanImage(w http.ResponseWriter, r *http.Request) {
	scan, err := s.findScan(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	http.ServeFile(w, r, scan)
}

// RecordsResponse carries the session's current state to the frontend.
type RecordsResponse struct {
	Parcel     types.Parcel   `json:"parcel"`
	Markers    []types.Marker `json:"markers"`
	Unverified []string       `json:"unverified"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeRecords(w, sess)
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !fileExists(sess.PlotPath()) {
		if err := sess.Replot(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	http.ServeFile(w, r, sess.PlotPath())
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var roi crop.ROI
	if err := json.NewDecoder(r.Body).Decode(&roi); err != nil {
		writeError(w, http.StatusBadRequest, "invalid crop region: "+err.Error())
		return
	}
	path, err := sess.CropTable(roi)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"table": path})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "no OCR engine configured")
		return
	}
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if _, err := sess.Extract(r.Context(), s.engine); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("table extracted", "base", sess.Base())
	writeRecords(w, sess)
}

// MarkerRequest is the edit payload for add and update operations.
type MarkerRequest struct {
	PointID  string `json:"point_id"`
	Label    string `json:"label"`
	Easting  string `json:"easting"`
	Northing string `json:"northing"`
}

func (s *Server) handleUpdateMarker(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req MarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid marker payload: "+err.Error())
		return
	}
	req.PointID = r.PathValue("pointID")

	m, err := sess.UpdateMarker(editor.MarkerEdit{
		PointID:  req.PointID,
		Label:    req.Label,
		Easting:  req.Easting,
		Northing: req.Northing,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAddMarker(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req MarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid marker payload: "+err.Error())
		return
	}
	m, err := sess.AddMarker(editor.MarkerEdit{
		PointID:  req.PointID,
		Label:    req.Label,
		Easting:  req.Easting,
		Northing: req.Northing,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMarker(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := sess.DeleteMarker(r.PathValue("pointID")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("base"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	path, err := sess.Save()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.logger.Info("records saved", "base", sess.Base(), "path", path)
	writeJSON(w, http.StatusOK, map[string]string{"saved": path})
}

// findScan resolves a deed base name to its scan path in the folder.
func (s *Server) findScan(base string) (string, error) {
	scans, err := deedfile.DiscoverScans(s.folder)
	if err != nil {
		return "", err
	}
	for _, scan := range scans {
		if deedfile.BaseName(scan) == base {
			return scan, nil
		}
	}
	return "", fmt.Errorf("no scan named %q in %s", base, s.folder)
}

func writeRecords(w http.ResponseWriter, sess *editor.Session) {
	p := sess.Parcel()
	writeJSON(w, http.StatusOK, RecordsResponse{
		Parcel:     p,
		Markers:    p.Markers,
		Unverified: p.UnverifiedIDs(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the JSON body of non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
