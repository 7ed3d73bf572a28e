package kernel

import "math"

// ExtractPoint returns the value at the grid cell nearest to (lat, lon).
//
// For Regular fields, the nearest index on each axis is found independently.
// For Projected fields, squared Euclidean distance in degrees is computed
// across the full (lat, lon) 2-D coordinate arrays and the argmin is picked,
// ties broken by the lowest flat index. NaN cells count as valid candidates
// only if no non-NaN cell is nearer (spec §4.1).
func ExtractPoint(f *Field, lat, lon float64) (float64, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}

	switch f.Shape {
	case Regular:
		i := nearestIndex(f.LatAxis, lat)
		j := nearestIndex(f.LonAxis, lon)
		return f.Values[i][j], nil
	case Projected:
		bi, bj := nearestProjectedCell(f, lat, lon)
		return f.Values[bi][bj], nil
	default:
		return 0, ErrInvalidGrid
	}
}

// nearestIndex returns the index of the axis entry closest to target,
// breaking ties toward the lower index.
func nearestIndex(axis []float64, target float64) int {
	best := 0
	bestDist := math.Abs(axis[0] - target)
	for i := 1; i < len(axis); i++ {
		d := math.Abs(axis[i] - target)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// nearestProjectedCell finds the argmin of squared Euclidean distance in
// degrees across a 2-D coordinate grid. Cell values are not inspected, so a
// NaN-valued cell is returned whenever it is the nearest; ties go to the
// lowest flat index.
func nearestProjectedCell(f *Field, lat, lon float64) (int, int) {
	bestI, bestJ := 0, 0
	bestDist := math.Inf(1)
	flat := -1
	bestFlat := -1

	for i := range f.Lat2D {
		for j := range f.Lat2D[i] {
			flat++
			dlat := f.Lat2D[i][j] - lat
			dlon := f.Lon2D[i][j] - lon
			d := dlat*dlat + dlon*dlon
			if d < bestDist {
				bestDist = d
				bestI, bestJ = i, j
				bestFlat = flat
			} else if d == bestDist && flat < bestFlat {
				bestI, bestJ = i, j
				bestFlat = flat
			}
		}
	}
	return bestI, bestJ
}

// MakeAxis produces cell centres at low, low+step, ... with value < high.
func MakeAxis(low, high, step float64) []float64 {
	if step <= 0 {
		return nil
	}
	var axis []float64
	for v := low; v < high; v += step {
		axis = append(axis, v)
	}
	return axis
}

// CommonBBox returns the intersection of every input field's axis-aligned
// lat/lon extent: the tightest box contained in all inputs.
func CommonBBox(fields []*Field) (BBox, error) {
	if len(fields) == 0 {
		return BBox{}, ErrInvalidGrid
	}

	var box BBox
	for i, f := range fields {
		b, err := fieldExtent(f)
		if err != nil {
			return BBox{}, err
		}
		if i == 0 {
			box = b
			continue
		}
		box.MinLat = math.Max(box.MinLat, b.MinLat)
		box.MaxLat = math.Min(box.MaxLat, b.MaxLat)
		box.MinLon = math.Max(box.MinLon, b.MinLon)
		box.MaxLon = math.Min(box.MaxLon, b.MaxLon)
	}
	return box, nil
}

// BBox is an axis-aligned lat/lon bounding box, local to the kernel so it has
// no dependency on the models package; storage-layer code converts between
// the two at the boundary.
type BBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func fieldExtent(f *Field) (BBox, error) {
	if err := f.validate(); err != nil {
		return BBox{}, err
	}
	switch f.Shape {
	case Regular:
		return BBox{
			MinLat: minOf(f.LatAxis), MaxLat: maxOf(f.LatAxis),
			MinLon: minOf(f.LonAxis), MaxLon: maxOf(f.LonAxis),
		}, nil
	case Projected:
		minLat, maxLat := math.Inf(1), math.Inf(-1)
		minLon, maxLon := math.Inf(1), math.Inf(-1)
		for i := range f.Lat2D {
			for j := range f.Lat2D[i] {
				minLat = math.Min(minLat, f.Lat2D[i][j])
				maxLat = math.Max(maxLat, f.Lat2D[i][j])
				minLon = math.Min(minLon, f.Lon2D[i][j])
				maxLon = math.Max(maxLon, f.Lon2D[i][j])
			}
		}
		return BBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}, nil
	default:
		return BBox{}, ErrInvalidGrid
	}
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// RegridToRegular performs nearest-neighbour interpolation of f onto the
// target axes. For Projected inputs, source cells are flattened, NaN cells
// dropped, and each target point resolved via nearest lookup across the
// remaining valid cells (spec §4.1's "k-d-tree-style nearest lookup").
func RegridToRegular(f *Field, targetLat, targetLon []float64) (*Field, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	values := make([][]float64, len(targetLat))
	for i := range values {
		values[i] = make([]float64, len(targetLon))
	}

	switch f.Shape {
	case Regular:
		for i, lat := range targetLat {
			srcI := nearestIndex(f.LatAxis, lat)
			for j, lon := range targetLon {
				srcJ := nearestIndex(f.LonAxis, lon)
				values[i][j] = f.Values[srcI][srcJ]
			}
		}
	case Projected:
		type cell struct{ lat, lon, val float64 }
		var valid []cell
		for i := range f.Lat2D {
			for j := range f.Lat2D[i] {
				v := f.Values[i][j]
				if math.IsNaN(v) {
					continue
				}
				valid = append(valid, cell{f.Lat2D[i][j], f.Lon2D[i][j], v})
			}
		}
		for i, lat := range targetLat {
			for j, lon := range targetLon {
				if len(valid) == 0 {
					values[i][j] = math.NaN()
					continue
				}
				bestDist := math.Inf(1)
				bestVal := math.NaN()
				for _, c := range valid {
					dlat := c.lat - lat
					dlon := c.lon - lon
					d := dlat*dlat + dlon*dlon
					if d < bestDist {
						bestDist = d
						bestVal = c.val
					}
				}
				values[i][j] = bestVal
			}
		}
	default:
		return nil, ErrInvalidGrid
	}

	return NewRegular(targetLat, targetLon, values), nil
}

// RegridAllToCommon derives the common regular target axes from the
// intersection bbox of fields at the given resolution, then regrids each
// field onto them. Ported from original_source's regrid_to_common, which
// composed the same bbox-intersection + arange + nearest-interp steps this
// rewrite exposes as three separate kernel calls (CommonBBox, MakeAxis,
// RegridToRegular) for most callers; this is the one-call convenience used
// by the grid-divergence path.
func RegridAllToCommon(fields map[string]*Field, resolution float64) (map[string]*Field, []float64, []float64, error) {
	if len(fields) == 0 {
		return map[string]*Field{}, nil, nil, nil
	}

	list := make([]*Field, 0, len(fields))
	for _, f := range fields {
		list = append(list, f)
	}
	box, err := CommonBBox(list)
	if err != nil {
		return nil, nil, nil, err
	}

	targetLat := MakeAxis(box.MinLat, box.MaxLat, resolution)
	targetLon := MakeAxis(box.MinLon, box.MaxLon, resolution)
	if len(targetLat) == 0 || len(targetLon) == 0 {
		return map[string]*Field{}, targetLat, targetLon, nil
	}

	out := make(map[string]*Field, len(fields))
	for name, f := range fields {
		regridded, err := RegridToRegular(f, targetLat, targetLon)
		if err != nil {
			continue
		}
		out[name] = regridded
	}
	return out, targetLat, targetLon, nil
}
