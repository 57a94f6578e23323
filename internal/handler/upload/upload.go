// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package upload

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
)

// Images only, capped at 5MB, matching what the chat UI accepts.
const maxUploadBytes = 5 * 1024 * 1024

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// NewHandler returns a Handler.
func NewHandler(storage *storage.Client, publicBucket string) *Handler {
	return &Handler{
		storage:      storage,
		publicBucket: publicBucket,
	}
}

// Handler stores a message attachment and returns its public URL.
type Handler struct {
	storage      *storage.Client
	publicBucket string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := auth.FromContext(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()
	if header.Size > maxUploadBytes {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ct := header.Header.Get("Content-Type")
	ext, ok := allowedTypes[ct]
	if !ok {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	objPath := path.Join("attachments", ident.UserID, uuid.NewString()+"."+ext)
	ow := h.storage.Bucket(h.publicBucket).Object(objPath).NewWriter(ctx)
	ow.ContentType = ct
	if _, err := io.Copy(ow, io.LimitReader(file, maxUploadBytes)); err != nil {
		_ = ow.Close()
		slog.ErrorContext(ctx, "upload: writing attachment", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}
	if err := ow.Close(); err != nil {
		slog.ErrorContext(ctx, "upload: closing attachment writer", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}

	name := header.Filename
	if name == "" {
		name = strings.TrimPrefix(path.Ext(objPath), ".")
	}
	attachment := chatdb.Attachment{
		Name:        name,
		URL:         fmt.Sprintf("https://storage.googleapis.com/%s/%s", h.publicBucket, objPath),
		ContentType: ct,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(attachment); err != nil {
		slog.ErrorContext(ctx, "upload: encoding response", "error", err)
	}
}
