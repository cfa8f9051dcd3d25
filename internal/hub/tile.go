package hub

import (
	"fmt"
	"math"

	"bikeflow/internal/domain"
)

// MaxViewportTiles bounds how many tiles one viewport may subscribe to.
const MaxViewportTiles = 256

// TileID returns the slippy-map tile containing the point at zoom.
func TileID(lat, lon float64, zoom int) string {
	x, y := tileXY(lat, lon, zoom)
	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

func tileXY(lat, lon float64, zoom int) (int, int) {
	n := math.Pow(2, float64(zoom))
	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxTile := int(n) - 1
	return clamp(x, 0, maxTile), clamp(y, 0, maxTile)
}

// ParseTileID extracts zoom, x, y from a tile ID string
func ParseTileID(tileID string) (zoom, x, y int, ok bool) {
	n, err := fmt.Sscanf(tileID, "%d/%d/%d", &zoom, &x, &y)
	if err != nil || n != 3 {
		return 0, 0, 0, false
	}
	maxTile := int(math.Pow(2, float64(zoom))) - 1
	if zoom < 0 || x < 0 || y < 0 || x > maxTile || y > maxTile {
		return 0, 0, 0, false
	}
	return zoom, x, y, true
}

// ViewportTiles returns the tiles covering bbox at zoom. ok is false when the
// viewport would need more than MaxViewportTiles.
func ViewportTiles(bbox domain.BoundingBox, zoom int) (tiles []string, ok bool) {
	x1, y1 := tileXY(bbox.MaxLat, bbox.MinLon, zoom)
	x2, y2 := tileXY(bbox.MinLat, bbox.MaxLon, zoom)

	if x2 < x1 || y2 < y1 {
		return nil, false
	}
	if (x2-x1+1)*(y2-y1+1) > MaxViewportTiles {
		return nil, false
	}

	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			tiles = append(tiles, fmt.Sprintf("%d/%d/%d", zoom, x, y))
		}
	}
	return tiles, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValidTileIDs reports whether every id is a well-formed tile at zoom.
func ValidTileIDs(tileIDs []string, zoom int) bool {
	for _, id := range tileIDs {
		z, _, _, ok := ParseTileID(id)
		if !ok || z != zoom {
			return false
		}
	}
	return true
}
