package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // registers the PNG format with image.Decode
	"math/rand"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
)

// DefaultFrameSampleFPS is a one-frame-per-second video sampling cadence
// for face detection, per §4.3 S1. ExtractFaces does not use it: each
// file's bytes, videos included, go whole to FaceRecognition.LocateAndEncode.
const DefaultFrameSampleFPS = 1.0

// DefaultClusterTolerance is the tolerance ExtractFaces passes to the
// density-based clusterer for strict grouping per §4.3 S1.
// DefaultClusterMinSamples is not passed: FaceRecognition.Cluster takes only
// a tolerance.
const (
	DefaultClusterTolerance  = 0.4
	DefaultClusterMinSamples = 1
	maxSampledFaces          = 16

	// faceCropMargin pads each detected bbox by this fraction of its own
	// width/height before cropping, per §4.3 S1.
	faceCropMargin = 0.2
)

type faceObservation struct {
	encoding []float32
	source   domain.SourceRef
	crop     []byte
}

// ExtractFaces runs S1: detect+encode every face across an event folder's
// media, cluster the encodings, and produce one review bundle (candidate
// Person) per cluster. Per-file failures are logged and skipped so one
// corrupt file never aborts the whole folder, matching analysis_service.go's
// tolerate-and-continue discipline.
func ExtractFaces(ctx context.Context, faces adapters.FaceRecognition, storage adapters.ObjectStorage, bucket, eventName string, fileKeys []string, logger *zap.Logger) ([]domain.FaceCluster, error) {
	var observations []faceObservation

	for _, key := range fileKeys {
		data, err := storage.GetBytes(ctx, bucket, key)
		if err != nil {
			logger.Warn("ingestion: skip unreadable file", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
			continue
		}

		sourceType := "image"
		if isVideoFile(key) {
			sourceType = "video_frame"
		}

		detections, err := faces.LocateAndEncode(ctx, data)
		if err != nil {
			logger.Warn("ingestion: face detection failed", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
			continue
		}
		for _, d := range detections {
			crop, err := cropBBox(data, d.BBox)
			if err != nil {
				logger.Warn("ingestion: face crop failed", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
				crop = nil
			}
			observations = append(observations, faceObservation{
				encoding: d.Encoding,
				source:   domain.SourceRef{EventName: eventName, FileName: path.Base(key), SourceType: sourceType},
				crop:     crop,
			})
		}
	}

	if len(observations) == 0 {
		return nil, nil
	}

	encodings := make([][]float32, len(observations))
	for i, o := range observations {
		encodings[i] = o.encoding
	}
	labels, err := faces.Cluster(ctx, encodings, DefaultClusterTolerance)
	if err != nil {
		return nil, err
	}

	byLabel := make(map[int][]faceObservation)
	for i, label := range labels {
		byLabel[label] = append(byLabel[label], observations[i])
	}

	clusters := make([]domain.FaceCluster, 0, len(byLabel))
	for label, obs := range byLabel {
		clusters = append(clusters, buildCluster(ctx, storage, bucket, eventName, label, obs, logger))
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterID < clusters[j].ClusterID })
	return clusters, nil
}

func buildCluster(ctx context.Context, storage adapters.ObjectStorage, bucket, eventName string, label int, obs []faceObservation, logger *zap.Logger) domain.FaceCluster {
	cluster := domain.FaceCluster{
		ClusterID:        label,
		TotalAppearances: len(obs),
	}
	for _, o := range obs {
		cluster.Encodings = append(cluster.Encodings, o.encoding)
		cluster.SourceRefs = append(cluster.SourceRefs, o.source)
	}
	cluster.SampledFaces = sampleCrops(ctx, storage, bucket, eventName, label, obs, logger)
	return cluster
}

// sampleCrops picks up to 16 random crops for caregiver review, persists
// each one to object storage under the cluster's review-bundle prefix, and
// returns their public URLs — the actual face crops named in §4.3 S1, not
// the whole source photo.
func sampleCrops(ctx context.Context, storage adapters.ObjectStorage, bucket, eventName string, clusterID int, obs []faceObservation, logger *zap.Logger) []string {
	indices := rand.Perm(len(obs))
	if len(indices) > maxSampledFaces {
		indices = indices[:maxSampledFaces]
	}
	sampled := make([]string, 0, len(indices))
	for i, idx := range indices {
		o := obs[idx]
		if len(o.crop) == 0 {
			continue
		}
		key := faceCropKey(eventName, clusterID, i)
		if _, err := storage.Put(ctx, bucket, key, o.crop, "image/jpeg"); err != nil {
			logger.Warn("ingestion: face crop persist failed", zap.String("event", eventName), zap.Int("cluster", clusterID), zap.Error(err))
			continue
		}
		url, err := storage.PublicURL(ctx, bucket, key)
		if err != nil {
			logger.Warn("ingestion: face crop url failed", zap.String("event", eventName), zap.Int("cluster", clusterID), zap.Error(err))
			continue
		}
		sampled = append(sampled, url)
	}
	return sampled
}

// faceCropKey places review-bundle crops outside any event folder's own
// "<event>/" prefix, so eventFileKeys (and the metadata/vault walk over the
// bucket) never mistake a cluster's sampled crops for ingestable event media.
func faceCropKey(eventName string, clusterID, index int) string {
	return fmt.Sprintf("_faces/%s/cluster-%d/%d.jpg", eventName, clusterID, index)
}

// cropBBox pads bbox (normalized [0,1]) by faceCropMargin on each side, clips
// to the image bounds, crops, and re-encodes as JPEG.
func cropBBox(data []byte, bbox adapters.FaceBBox) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	padX := bbox.W * faceCropMargin
	padY := bbox.H * faceCropMargin

	x0 := clamp01(bbox.X-padX) * w
	y0 := clamp01(bbox.Y-padY) * h
	x1 := clamp01(bbox.X+bbox.W+padX) * w
	y1 := clamp01(bbox.Y+bbox.H+padY) * h

	rect := image.Rect(int(x0), int(y0), int(x1), int(y1)).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("crop bbox %+v is empty after clamping to image bounds", bbox)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isVideoFile(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range []string{".mp4", ".mov", ".avi", ".mkv", ".webm"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
