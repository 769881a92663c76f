package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/vision-mcp/internal/vision"
)

type locateObjectsArgs struct {
	ImagePath       string   `json:"image_path" jsonschema:"description=Local path or http(s) URL of the image"`
	CandidateLabels []string `json:"candidate_labels" jsonschema:"minItems=1,description=Labels the detector may assign such as cat or dog"`
	ModelID         string   `json:"model_id,omitempty" jsonschema:"description=Zero-shot detection model id. Defaults to the server model"`
	Annotate        bool     `json:"annotate,omitempty" jsonschema:"default=false,description=Also return the image with detections drawn"`
}

func handleLocateObjects(svc *vision.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var a locateObjectsArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		located, err := svc.LocateObjects(ctx, a.ImagePath, a.CandidateLabels, a.ModelID, a.Annotate)
		if err != nil {
			return nil, err
		}
		r := DetectionsResult(located.Detections)
		if len(located.Annotated) > 0 {
			r.Image = located.Annotated
			r.MIMEType = "image/png"
		}
		return r, nil
	}
}

type zoomToObjectArgs struct {
	ImagePath string `json:"image_path" jsonschema:"description=Local path or http(s) URL of the image"`
	Label     string `json:"label" jsonschema:"description=Object to zoom in on"`
	ModelID   string `json:"model_id,omitempty" jsonschema:"description=Zero-shot detection model id. Defaults to the server model"`
	Padding   int    `json:"padding,omitempty" jsonschema:"minimum=0,default=0,description=Pixels of context kept around the object"`
}

func handleZoomToObject(svc *vision.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var a zoomToObjectArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		zoomed, err := svc.ZoomToObject(ctx, a.ImagePath, a.Label, a.ModelID, a.Padding)
		if err != nil {
			return nil, err
		}
		if zoomed == nil {
			return EmptyResult(), nil
		}
		d := zoomed.Detection
		caption := fmt.Sprintf("%s (score %.2f) at [%d, %d, %d, %d]",
			d.Label, d.Score, d.Box.XMin, d.Box.YMin, d.Box.XMax, d.Box.YMax)
		return ImageResult(zoomed.PNG, "image/png", caption), nil
	}
}

type readTextFromImageArgs struct {
	ImagePath     string   `json:"image_path" jsonschema:"description=Local path or http(s) URL of the image"`
	Languages     []string `json:"languages,omitempty" jsonschema:"description=OCR languages such as eng or tha. Defaults to the server languages"`
	MinConfidence float64  `json:"min_confidence,omitempty" jsonschema:"minimum=0,maximum=1,default=0,description=Drop text recognized with confidence at or below this. 0 keeps everything"`
	UseCache      *bool    `json:"use_cache,omitempty" jsonschema:"default=true,description=Reuse cached OCR output when the server has a cache"`
}

func handleReadTextFromImage(svc *vision.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var a readTextFromImageArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		text, err := svc.ReadTextFromImage(ctx, a.ImagePath, vision.TextOptions{
			Languages:     a.Languages,
			MinConfidence: a.MinConfidence,
			UseCache:      boolOr(a.UseCache, true),
		})
		if err != nil {
			return nil, err
		}
		return TextResult(text), nil
	}
}

type readTextFromPDFArgs struct {
	PDFPath       string   `json:"pdf_path" jsonschema:"description=Local path or http(s) URL of the PDF"`
	Languages     []string `json:"languages,omitempty" jsonschema:"description=OCR languages such as eng or tha. Defaults to the server languages"`
	NumPages      int      `json:"num_pages,omitempty" jsonschema:"minimum=1,description=Read only the first pages. Defaults to every page"`
	MinConfidence float64  `json:"min_confidence,omitempty" jsonschema:"minimum=0,maximum=1,default=0,description=Drop text recognized with confidence at or below this. 0 keeps everything"`
	BatchSize     int      `json:"batch_size,omitempty" jsonschema:"minimum=1,default=1,description=Pages recognized in parallel"`
	UseCache      *bool    `json:"use_cache,omitempty" jsonschema:"default=true,description=Reuse cached OCR output when the server has a cache"`
}

func handleReadTextFromPDF(svc *vision.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var a readTextFromPDFArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		text, err := svc.ReadTextFromPDF(ctx, a.PDFPath, vision.PDFOptions{
			TextOptions: vision.TextOptions{
				Languages:     a.Languages,
				MinConfidence: a.MinConfidence,
				UseCache:      boolOr(a.UseCache, true),
			},
			NumPages:  a.NumPages,
			BatchSize: a.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		return TextResult(text), nil
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
