// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http contains private implementation details for the layout server.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/api"
	"github.com/google/imxrt-bootlayout/internal/layout"
	"github.com/google/imxrt-bootlayout/internal/report"
	"github.com/gorilla/mux"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxImageSize is the largest ELF file accepted for checking.
const MaxImageSize = 32 << 20

// Store is the interface to the persistent store of images and reports.
type Store interface {
	// PutImage stores the image under its hex SHA512.
	PutImage(ctx context.Context, hash string, image []byte) error

	// GetImage gets an image that was previously stored.
	// Must return status code NotFound if no such image exists.
	GetImage(ctx context.Context, hash string) ([]byte, error)

	// PutReport stores a report, replacing any for the same image and board.
	PutReport(ctx context.Context, r api.Report) error

	// GetReport gets the report for an image and board.
	// Must return status code NotFound if no such report exists.
	GetReport(ctx context.Context, hash, board string) (api.Report, error)
}

// Server is the core state & handler implementation of the layout server.
type Server struct {
	store    Store
	profiles []layout.Profile
	gen      report.Generator
	metrics  *Metrics
}

// NewServer creates a new server that checks uploads against the given
// profiles and keeps the results in store.
func NewServer(store Store, profiles []layout.Profile, gen report.Generator, metrics *Metrics) *Server {
	return &Server{
		store:    store,
		profiles: profiles,
		gen:      gen,
		metrics:  metrics,
	}
}

// check handles the upload of an ELF image to be checked against a board.
func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	board := mux.Vars(r)["board"]
	p, ok := layout.Find(s.profiles, board)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown board %q", board), http.StatusNotFound)
		return
	}
	if p.ExpectBuildFailure {
		http.Error(w, fmt.Sprintf("board %q only describes a failing build", board), http.StatusBadRequest)
		return
	}
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageSize))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read image: %v", err), http.StatusBadRequest)
		return
	}
	if len(image) == 0 {
		http.Error(w, "empty image", http.StatusBadRequest)
		return
	}

	rep := s.gen.Generate(image, p)
	s.metrics.observe(rep)
	glog.V(1).Infof("Checked image %.16s: %s", rep.ImageSHA512, rep)

	if err := s.store.PutImage(r.Context(), rep.ImageSHA512, image); err != nil {
		http.Error(w, fmt.Sprintf("failed to store image: %v", err), http.StatusInternalServerError)
		return
	}
	if err := s.store.PutReport(r.Context(), rep); err != nil {
		http.Error(w, fmt.Sprintf("failed to store report: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rep)
}

// getReport returns a stored report.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	rep, err := s.store.GetReport(r.Context(), v["hash"], v["board"])
	if err != nil {
		http.Error(w, err.Error(), httpStatusForErr(err))
		return
	}
	writeJSON(w, rep)
}

// getImage returns a stored image.
func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	image, err := s.store.GetImage(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		http.Error(w, err.Error(), httpStatusForErr(err))
		return
	}

	w.Header().Set("Content-Type", "application/binary")
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.Write(image)
}

// listBoards returns the names of the profiles images can be checked against.
func (s *Server) listBoards(w http.ResponseWriter, r *http.Request) {
	var ps []layout.Profile
	for _, p := range s.profiles {
		if !p.ExpectBuildFailure {
			ps = append(ps, p)
		}
	}
	writeJSON(w, layout.Names(ps))
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(b); err != nil {
		glog.Warningf("failed to write response: %v", err)
	}
}

// httpStatusForErr maps status codes to HTTP errors.
func httpStatusForErr(e error) int {
	switch status.Code(e) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RegisterHandlers registers HTTP handlers for the layout endpoints.
func (s *Server) RegisterHandlers(r *mux.Router) {
	r.HandleFunc(fmt.Sprintf("/%s/for-board/{board}", api.HTTPCheck), s.check).Methods("POST")
	r.HandleFunc(fmt.Sprintf("/%s/with-hash/{hash:[0-9a-f]{128}}/for-board/{board}", api.HTTPGetReport), s.getReport).Methods("GET")
	r.HandleFunc(fmt.Sprintf("/%s/with-hash/{hash:[0-9a-f]{128}}", api.HTTPGetImage), s.getImage).Methods("GET")
	r.HandleFunc(fmt.Sprintf("/%s", api.HTTPListBoards), s.listBoards).Methods("GET")
}
