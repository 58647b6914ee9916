package adapters

import (
	"context"
	"fmt"
	"time"
)

// HTTPFaceRecognition talks to the external face-detection and clustering
// service used by ingestion S1.
type HTTPFaceRecognition struct {
	base baseHTTPClient
}

func NewHTTPFaceRecognition(baseURL, apiKey string) *HTTPFaceRecognition {
	return &HTTPFaceRecognition{base: newBaseHTTPClient(baseURL, apiKey, 30*time.Second)}
}

func (f *HTTPFaceRecognition) LocateAndEncode(ctx context.Context, image []byte) ([]FaceDetection, error) {
	req := struct {
		ImageB64 string `json:"image_base64"`
	}{ImageB64: encodeB64(image)}
	var out struct {
		Faces []struct {
			BBox     [4]float64 `json:"bbox"`
			Encoding []float32  `json:"encoding"`
		} `json:"faces"`
	}
	if err := f.base.postJSON(ctx, "/faces/locate_and_encode", req, &out); err != nil {
		return nil, fmt.Errorf("locate and encode faces: %w", err)
	}
	detections := make([]FaceDetection, 0, len(out.Faces))
	for _, face := range out.Faces {
		detections = append(detections, FaceDetection{
			BBox:     FaceBBox{X: face.BBox[0], Y: face.BBox[1], W: face.BBox[2], H: face.BBox[3]},
			Encoding: face.Encoding,
		})
	}
	return detections, nil
}

func (f *HTTPFaceRecognition) Cluster(ctx context.Context, encodings [][]float32, tolerance float64) ([]int, error) {
	req := struct {
		Encodings [][]float32 `json:"encodings"`
		Tolerance float64     `json:"tolerance"`
		MinSamples int        `json:"min_samples"`
	}{Encodings: encodings, Tolerance: tolerance, MinSamples: 1}
	var out struct {
		Labels []int `json:"labels"`
	}
	if err := f.base.postJSON(ctx, "/faces/cluster", req, &out); err != nil {
		return nil, fmt.Errorf("cluster faces: %w", err)
	}
	return out.Labels, nil
}
