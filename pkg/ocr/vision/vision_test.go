package vision

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/disintegration/imaging"
	"github.com/googleapis/gax-go/v2"

	"catalogscan/pkg/ocr"
)

type fakeAnnotator struct {
	resp *visionpb.BatchAnnotateImagesResponse
	err  error
	last *visionpb.BatchAnnotateImagesRequest
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.last = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error { return nil }

func TestRecognizeUsesFullText(t *testing.T) {
	fa := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{
				Text:  "SAVE $2.00\n$10.00",
				Pages: []*visionpb.Page{{Confidence: 0.5}},
			},
		}},
	}}
	b := &Backend{client: fa}
	rec, err := b.Recognize(context.Background(), imaging.New(20, 10, color.White), ocr.LayoutSingleLine)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if rec.Text != "SAVE $2.00\n$10.00" || rec.Confidence != 50 {
		t.Fatalf("unexpected recognition %+v", rec)
	}
	if got := fa.last.Requests[0].Features[0].Type; got != visionpb.Feature_TEXT_DETECTION {
		t.Fatalf("single line should use TEXT_DETECTION got %v", got)
	}
	if len(fa.last.Requests[0].Image.Content) == 0 {
		t.Fatalf("crop not encoded into request")
	}
}

func TestRecognizeBlockUsesDocumentDetection(t *testing.T) {
	fa := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			TextAnnotations: []*visionpb.EntityAnnotation{{Description: "Fresh Milk"}},
		}},
	}}
	b := &Backend{client: fa, hints: []string{"en"}}
	rec, err := b.Recognize(context.Background(), imaging.New(20, 10, color.White), ocr.LayoutUniformBlock)
	if err != nil || rec.Text != "Fresh Milk" {
		t.Fatalf("expected entity fallback got %+v err=%v", rec, err)
	}
	if got := fa.last.Requests[0].Features[0].Type; got != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
		t.Fatalf("block should use DOCUMENT_TEXT_DETECTION got %v", got)
	}
	if hints := fa.last.Requests[0].ImageContext.GetLanguageHints(); len(hints) != 1 || hints[0] != "en" {
		t.Fatalf("language hints not sent: %v", hints)
	}
}

func TestRecognizeWrapsErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	b := &Backend{client: &fakeAnnotator{err: boom}}
	_, err := b.Recognize(context.Background(), imaging.New(5, 5, color.White), ocr.LayoutAuto)
	var ve *Error
	if !errors.As(err, &ve) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped vision error got %v", err)
	}
}
