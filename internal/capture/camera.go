package capture

import (
	"fmt"
	"strconv"
)

// indexOpener opens a camera by numeric index. Only the gocv build provides one.
var indexOpener func(id int) (Source, error)

// OpenCamera opens a live camera. A bare number ("0") selects a camera by index
// through OpenCV; anything else is a V4L2 device path.
func OpenCamera(device string, width, height int) (Source, error) {
	if id, err := strconv.Atoi(device); err == nil {
		if indexOpener == nil {
			return nil, fmt.Errorf("camera index %d requires a build with -tags gocv", id)
		}
		return indexOpener(id)
	}
	return OpenWebcam(device, width, height)
}
