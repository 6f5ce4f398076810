//go:build dlib

package provider

import (
	"context"
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

func init() {
	Register("dlib", func(cfg config.EmbeddingConfig, model string) (Provider, error) {
		return NewDlib(cfg.ModelsDir, model)
	})
}

// Dlib runs detection and embedding in-process with dlib via go-face.
// The models directory must contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for the cnn model,
// mmod_human_face_detector.dat.
type Dlib struct {
	rec    *face.Recognizer
	useCNN bool

	// go-face detects and embeds in a single pass, so the faces of the last
	// frame are kept for the ComputeEmbeddings call that follows DetectFaces.
	mu        sync.Mutex
	lastFrame *imaging.Frame
	lastFaces []face.Face
}

// NewDlib loads the dlib models. model is "hog" or "cnn".
func NewDlib(modelsDir, model string) (*Dlib, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &Dlib{rec: rec, useCNN: model == "cnn"}, nil
}

func (d *Dlib) Name() string { return "dlib" }

func (d *Dlib) ChannelOrder() imaging.ChannelOrder { return imaging.RGB }

// Close releases the recognizer resources.
func (d *Dlib) Close() {
	d.rec.Close()
}

func (d *Dlib) recognize(frame *imaging.Frame) ([]face.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastFrame == frame {
		return d.lastFaces, nil
	}

	data, err := imaging.JPEGBytes(frame, jpegQuality)
	if err != nil {
		return nil, err
	}

	var faces []face.Face
	if d.useCNN {
		faces, err = d.rec.RecognizeCNN(data)
	} else {
		faces, err = d.rec.Recognize(data)
	}
	if err != nil {
		return nil, fmt.Errorf("face recognition failed: %w", err)
	}

	d.lastFrame = frame
	d.lastFaces = faces
	return faces, nil
}

func (d *Dlib) DetectFaces(_ context.Context, frame *imaging.Frame) ([]image.Rectangle, error) {
	faces, err := d.recognize(frame)
	if err != nil {
		return nil, err
	}
	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle
	}
	return boxes, nil
}

// ComputeEmbeddings pairs each box with the detected face it overlaps most.
func (d *Dlib) ComputeEmbeddings(_ context.Context, frame *imaging.Frame, boxes []image.Rectangle) ([]facematch.Embedding, error) {
	faces, err := d.recognize(frame)
	if err != nil {
		return nil, err
	}

	embeddings := make([]facematch.Embedding, len(boxes))
	for i, box := range boxes {
		bestIdx := -1
		bestIoU := 0.0
		for j, f := range faces {
			iou := facematch.Overlap(box, f.Rectangle)
			if iou > bestIoU {
				bestIoU = iou
				bestIdx = j
			}
		}
		if bestIdx < 0 {
			return nil, fmt.Errorf("box %v: %w", box, ErrNoFace)
		}
		desc := faces[bestIdx].Descriptor
		emb := make(facematch.Embedding, len(desc))
		copy(emb, desc[:])
		embeddings[i] = emb
	}
	return embeddings, nil
}
