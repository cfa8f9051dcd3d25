package bluebikes

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"bikeflow/internal/domain"
)

// DefaultParseCacheDir is used when no directory is configured.
func DefaultParseCacheDir() string {
	return filepath.Join(os.TempDir(), "bikeflow-trip-cache")
}

// DataFingerprint identifies a feed body together with anything else that
// changes how it parses (the trip time zone).
func DataFingerprint(data []byte, salt string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}

func parsedCachePath(cacheDir, fingerprint string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("trips_parsed_%s.gob.gz", fingerprint))
}

func LoadParsedTrips(cacheDir, fingerprint string) ([]domain.Trip, string, error) {
	path := parsedCachePath(cacheDir, fingerprint)
	f, err := os.Open(path)
	if err != nil {
		return nil, path, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, path, err
	}
	defer zr.Close()

	var trips []domain.Trip
	if err := gob.NewDecoder(zr).Decode(&trips); err != nil {
		return nil, path, err
	}
	if len(trips) == 0 {
		return nil, path, fmt.Errorf("parsed cache is empty")
	}

	return trips, path, nil
}

// SaveParsedTrips writes through a temp file so a crash never leaves a
// truncated cache entry behind.
func SaveParsedTrips(cacheDir, fingerprint string, trips []domain.Trip) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	path := parsedCachePath(cacheDir, fingerprint)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	zw, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		f.Close()
		return "", err
	}

	encErr := gob.NewEncoder(zw).Encode(trips)
	closeErr := zw.Close()
	fileCloseErr := f.Close()
	for _, err := range []error{encErr, closeErr, fileCloseErr} {
		if err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	return path, nil
}

// StationsFingerprint identifies a parsed station list.
func StationsFingerprint(stations []domain.Station) string {
	h := sha256.New()
	for _, s := range stations {
		fmt.Fprintf(h, "%s|%s|%.7f|%.7f|%d\n", s.ShortName, s.Name, s.Lat, s.Lon, s.Capacity)
	}
	return hex.EncodeToString(h.Sum(nil))
}
