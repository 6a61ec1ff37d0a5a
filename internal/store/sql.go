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

// Package store keeps uploaded firmware images and the layout reports produced
// for them in a SQL database. Both sqlite3 and MySQL are supported.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/imxrt-bootlayout/api"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store is a SQL backed store of images keyed by the hex SHA512 of their
// contents, and of reports keyed by image and board.
type Store struct {
	db *sql.DB
}

// New creates a Store that uses the given DB as a backend.
// The DB will be initialized if needed.
func New(db *sql.DB) (*Store, error) {
	s := &Store{
		db: db,
	}
	return s, s.init()
}

// init creates the database tables if needed. It is idempotent.
func (s *Store) init() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS images (
		imageHash VARCHAR(128),
		data LONGBLOB,
		PRIMARY KEY (imageHash)
		)`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS reports (
		imageHash VARCHAR(128),
		board VARCHAR(200),
		report BLOB,
		PRIMARY KEY (imageHash, board)
		)`); err != nil {
		return err
	}
	return nil
}

// PutImage stores an image under its hash. Storing the same image again is
// not an error.
func (s *Store) PutImage(ctx context.Context, hash string, image []byte) error {
	if hash == "" {
		return status.Error(codes.InvalidArgument, "empty image hash")
	}
	_, err := s.db.ExecContext(ctx, "REPLACE INTO images (imageHash, data) VALUES (?, ?)", hash, image)
	return err
}

// GetImage returns a previously stored image.
// If there is no such image then an error with status `codes.NotFound` is returned.
func (s *Store) GetImage(ctx context.Context, hash string) ([]byte, error) {
	var image []byte
	row := s.db.QueryRowContext(ctx, "SELECT data FROM images WHERE imageHash = ?", hash)
	if err := row.Scan(&image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.Errorf(codes.NotFound, "no image with hash %q", hash)
		}
		return nil, err
	}
	return image, nil
}

// PutReport stores r, replacing any earlier report for the same image and board.
func (s *Store) PutReport(ctx context.Context, r api.Report) error {
	if r.ImageSHA512 == "" || r.Board == "" {
		return status.Error(codes.InvalidArgument, "report needs an image hash and a board")
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "REPLACE INTO reports (imageHash, board, report) VALUES (?, ?, ?)", r.ImageSHA512, r.Board, raw)
	return err
}

// GetReport returns the stored report for the image and board.
// If there is no such report then an error with status `codes.NotFound` is returned.
func (s *Store) GetReport(ctx context.Context, hash, board string) (api.Report, error) {
	var raw []byte
	row := s.db.QueryRowContext(ctx, "SELECT report FROM reports WHERE imageHash = ? AND board = ?", hash, board)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Report{}, status.Errorf(codes.NotFound, "no report for image %q on board %q", hash, board)
		}
		return api.Report{}, err
	}
	var r api.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return api.Report{}, fmt.Errorf("corrupt report for image %q on board %q: %w", hash, board, err)
	}
	return r, nil
}
