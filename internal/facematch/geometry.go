package facematch

// CornersToBox converts a detector bbox [x1, y1, x2, y2] to [x, y, w, h].
// Malformed input is returned unchanged.
func CornersToBox(bbox []float64) []float64 {
	if len(bbox) != 4 {
		return bbox
	}
	return []float64{
		bbox[0],
		bbox[1],
		bbox[2] - bbox[0],
		bbox[3] - bbox[1],
	}
}

// BoxArea returns the area of a [x, y, w, h] box, 0 for malformed boxes.
func BoxArea(box []float64) float64 {
	if len(box) != 4 || box[2] <= 0 || box[3] <= 0 {
		return 0
	}
	return box[2] * box[3]
}

// BoxToRelative converts a pixel [x, y, w, h] box to relative (0-1) coordinates.
func BoxToRelative(box []float64, width, height int) []float64 {
	if len(box) != 4 || width <= 0 || height <= 0 {
		return box
	}
	return []float64{
		box[0] / float64(width),
		box[1] / float64(height),
		box[2] / float64(width),
		box[3] / float64(height),
	}
}
