package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrImageDecode marks a page whose bitmap could not be decoded; the page is skipped.
	ErrImageDecode = errors.New("image decode failed")
	// ErrRegionRecognition marks a region whose recognition failed or timed out.
	ErrRegionRecognition = errors.New("region recognition failed")
	// ErrPriceOutOfRange is returned by price validators; it never leaves PriceParser.
	ErrPriceOutOfRange = errors.New("price out of range")
	// ErrNoNearbyMatch is returned when no product region lies within the match cutoff.
	ErrNoNearbyMatch = errors.New("no product region within match distance")
	// ErrStateCorrupt marks an unreadable resume artifact. Fatal to the run.
	ErrStateCorrupt = errors.New("persisted run state is corrupt")
	// ErrNoPages is returned when the input source has no page candidates.
	ErrNoPages = errors.New("no pages to process")
	// ErrTemplateMismatch is reported (as a warning) when a template-mode image is resized.
	ErrTemplateMismatch = errors.New("image does not match template size")
)

// ImageDecodeError describes a page that could not be turned into a bitmap.
type ImageDecodeError struct {
	Page int
	Path string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("page %d (%s): %v", e.Page, e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

func (e *ImageDecodeError) Is(target error) bool { return target == ErrImageDecode }

// StateCorruptError describes a checkpoint or output file that exists but cannot be parsed.
type StateCorruptError struct {
	Path string
	Err  error
}

func (e *StateCorruptError) Error() string {
	return fmt.Sprintf("corrupt run state %s: %v", e.Path, e.Err)
}

func (e *StateCorruptError) Unwrap() error { return e.Err }

func (e *StateCorruptError) Is(target error) bool { return target == ErrStateCorrupt }

// RecognitionError wraps a backend failure for one attempt on one region.
type RecognitionError struct {
	Op     string
	Region Region
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s %s region at (%d,%d): %v", e.Op, e.Region.Kind, e.Region.X, e.Region.Y, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) Is(target error) bool { return target == ErrRegionRecognition }
