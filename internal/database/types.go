package database

import (
	"time"
)

// StoredEnrollment is a cached enrollment embedding keyed by image content hash and model.
type StoredEnrollment struct {
	ImageHash string    `json:"image_hash"`
	Model     string    `json:"model"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Embedding []float32 `json:"-"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}
