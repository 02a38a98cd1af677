package stations

import (
	"math"

	"github.com/nwwx/forecastpipe/internal/griddata"
)

// bucketIndex is a coarse 2D spatial index over a curvilinear grid's
// scattered (lat, lon) points: the grid's bounding box is divided into a
// fixed number of bins, and each bin holds the grid indices whose point
// falls inside it. Nearest-neighbor lookup scans the query's bin and its
// eight neighbors, which is sufficient whenever the bin width is on the
// order of the grid spacing itself (true here, since perAxis scales
// with sqrt(Nx*Ny)).
type bucketIndex struct {
	nx, ny        int
	minLat, maxLat float64
	minLon, maxLon float64
	bucketsX, bucketsY int
	buckets       map[[2]int][]int // bucket coord -> flattened grid indices
}

const curviTargetPointsPerBucket = 4

func buildBucketIndex(ds *griddata.Dataset) *bucketIndex {
	n := ds.Nx * ds.Ny
	idx := &bucketIndex{nx: ds.Nx, ny: ds.Ny, buckets: make(map[[2]int][]int)}

	idx.minLat, idx.maxLat = math.Inf(1), math.Inf(-1)
	idx.minLon, idx.maxLon = math.Inf(1), math.Inf(-1)
	for _, lat := range ds.Lat2D {
		if lat < idx.minLat {
			idx.minLat = lat
		}
		if lat > idx.maxLat {
			idx.maxLat = lat
		}
	}
	for _, lon := range ds.Lon2D {
		if lon < idx.minLon {
			idx.minLon = lon
		}
		if lon > idx.maxLon {
			idx.maxLon = lon
		}
	}

	perAxis := int(math.Sqrt(float64(n) / curviTargetPointsPerBucket))
	if perAxis < 1 {
		perAxis = 1
	}
	idx.bucketsX, idx.bucketsY = perAxis, perAxis

	for flat := 0; flat < n; flat++ {
		bx, by := idx.bucketCoord(ds.Lon2D[flat], ds.Lat2D[flat])
		key := [2]int{bx, by}
		idx.buckets[key] = append(idx.buckets[key], flat)
	}
	return idx
}

func (b *bucketIndex) bucketCoord(lon, lat float64) (int, int) {
	bx := int((lon - b.minLon) / (b.maxLon - b.minLon + 1e-12) * float64(b.bucketsX))
	by := int((lat - b.minLat) / (b.maxLat - b.minLat + 1e-12) * float64(b.bucketsY))
	return clampInt(bx, 0, b.bucketsX-1), clampInt(by, 0, b.bucketsY-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nearest returns the (i, j) grid index whose point is closest to
// (lon, lat), searching the query's bucket and its ring of neighbors.
func (b *bucketIndex) nearest(ds *griddata.Dataset, lon, lat float64) (int, int, bool) {
	bx, by := b.bucketCoord(lon, lat)

	bestFlat, bestDist := -1, math.Inf(1)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			key := [2]int{clampInt(bx+dx, 0, b.bucketsX-1), clampInt(by+dy, 0, b.bucketsY-1)}
			for _, flat := range b.buckets[key] {
				d := haversineApprox(lon, lat, ds.Lon2D[flat], ds.Lat2D[flat])
				if d < bestDist {
					bestDist, bestFlat = d, flat
				}
			}
		}
	}
	if bestFlat < 0 {
		return 0, 0, false
	}
	return bestFlat % b.nx, bestFlat / b.nx, true
}

// haversineApprox is a flat-earth approximation adequate for nearest-
// neighbor ranking over the small regional extents this pipeline targets;
// it avoids a trig-heavy great-circle computation per candidate point.
func haversineApprox(lon1, lat1, lon2, lat2 float64) float64 {
	dLat := lat1 - lat2
	dLon := (lon1 - lon2) * math.Cos((lat1+lat2)/2*math.Pi/180)
	return dLat*dLat + dLon*dLon
}

type curviIndexKey struct {
	modelID string
	nx, ny  int
}

// curvilinearNearest looks up (or builds and caches) the bucket index for
// ds's model and grid shape, then returns the nearest grid cell to st.
func (s *Sampler) curvilinearNearest(ds *griddata.Dataset, st Station) (int, int, bool) {
	key := curviIndexKey{modelID: ds.ModelID, nx: ds.Nx, ny: ds.Ny}
	var idx *bucketIndex
	if cached, ok := s.curviIndex.Load(key); ok {
		idx = cached.(*bucketIndex)
	} else {
		idx = buildBucketIndex(ds)
		s.curviIndex.Store(key, idx)
	}
	return idx.nearest(ds, st.Lon, st.Lat)
}
