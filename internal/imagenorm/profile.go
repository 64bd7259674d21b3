package imagenorm

import "fmt"

// Fit selects how the source is mapped onto the target box.
type Fit int

const (
	// FitWidth scales down to MaxWidth, keeping the aspect ratio.
	FitWidth Fit = iota
	// FitCover fills an exact MaxWidth x MaxHeight canvas, centered; overflow is cropped.
	FitCover
	// FitWithin caps the longest side: landscape images by MaxWidth, others by MaxHeight.
	FitWithin
)

// Profile is the resize and compression budget of one upload call site. Qualities are
// JPEG qualities in 1..100.
type Profile struct {
	Name         string
	MaxWidth     int
	MaxHeight    int
	Fit          Fit
	Ceiling      int
	StartQuality int
	FloorQuality int
	Step         int
}

var (
	// Upload is the generic admin upload profile.
	Upload = Profile{Name: "upload", MaxWidth: 800, Fit: FitWidth, Ceiling: 2_000_000, StartQuality: 60, FloorQuality: 30, Step: 10}
	// Portrait is used for the author photo.
	Portrait = Profile{Name: "portrait", MaxWidth: 400, MaxHeight: 600, Fit: FitCover, Ceiling: 1_000_000, StartQuality: 60, FloorQuality: 20, Step: 5}
	// Cover is used for book covers.
	Cover = Profile{Name: "cover", MaxWidth: 400, MaxHeight: 600, Fit: FitWithin, Ceiling: 2 * 1024 * 1024, StartQuality: 70, FloorQuality: 10, Step: 10}
)

// ProfileByName resolves a profile; the empty name selects Upload.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", Upload.Name:
		return Upload, nil
	case Portrait.Name:
		return Portrait, nil
	case Cover.Name:
		return Cover, nil
	default:
		return Profile{}, fmt.Errorf("unknown image profile %q", name)
	}
}
