// Package vision implements the ocr.Backend contract on Google Cloud Vision.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/disintegration/imaging"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"catalogscan/pkg/ocr"
)

// ErrMissingCredentials is returned when no credentials are found in the environment.
var ErrMissingCredentials = errors.New("google credentials not configured")

// Error wraps a failed Vision call with the operation and details.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("vision: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("vision: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return err
	}
	return &Error{Op: op, Err: err, Details: details}
}

// annotator is the subset of the Vision client used here.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Backend sends each crop as one TEXT_DETECTION (line/word layouts) or
// DOCUMENT_TEXT_DETECTION (block/auto layouts) request.
type Backend struct {
	client annotator
	hints  []string
}

// New creates a backend with credentials from GOOGLE_CREDENTIALS (inline
// JSON), GOOGLE_APPLICATION_CREDENTIALS (file) or the default chain.
func New(ctx context.Context, languageHints ...string) (*Backend, error) {
	const op = "New"
	var client *vision.ImageAnnotatorClient
	var err error
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, wrap(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, wrap(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, wrap(op, ErrMissingCredentials, err.Error())
		}
	}
	return &Backend{client: client, hints: languageHints}, nil
}

func feature(l ocr.Layout) visionpb.Feature_Type {
	switch l {
	case ocr.LayoutSingleLine, ocr.LayoutSingleWord:
		return visionpb.Feature_TEXT_DETECTION
	default:
		return visionpb.Feature_DOCUMENT_TEXT_DETECTION
	}
}

func (b *Backend) Recognize(ctx context.Context, img image.Image, layout ocr.Layout) (ocr.Recognition, error) {
	const op = "Recognize"
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return ocr.Recognition{}, wrap(op, err, "encode crop")
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: buf.Bytes()},
			Features: []*visionpb.Feature{{Type: feature(layout)}},
		}},
	}
	if len(b.hints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: b.hints}
	}
	resp, err := b.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return ocr.Recognition{}, wrap(op, err, "Vision API call failed")
	}
	if len(resp.GetResponses()) == 0 {
		return ocr.Recognition{}, nil
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return ocr.Recognition{}, wrap(op, errors.New(r.GetError().GetMessage()), "Vision API error")
	}
	return fromResponse(r), nil
}

// fromResponse prefers the full text annotation and falls back to the first
// entity, which Vision fills with the whole detected text.
func fromResponse(r *visionpb.AnnotateImageResponse) ocr.Recognition {
	if full := r.GetFullTextAnnotation(); full != nil && full.GetText() != "" {
		var sum float32
		n := 0
		for _, p := range full.GetPages() {
			if p.GetConfidence() > 0 {
				sum += p.GetConfidence()
				n++
			}
		}
		rec := ocr.Recognition{Text: full.GetText()}
		if n > 0 {
			rec.Confidence = float64(sum/float32(n)) * 100
		}
		return rec
	}
	if ann := r.GetTextAnnotations(); len(ann) > 0 {
		return ocr.Recognition{Text: ann[0].GetDescription(), Confidence: float64(ann[0].GetConfidence()) * 100}
	}
	return ocr.Recognition{}
}

func (b *Backend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
