package raster

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNew(t *testing.T) {
	r, err := New(3, 2, RGBA)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(r.Pix) != 24 {
		t.Errorf("buffer length: got %d, want 24", len(r.Pix))
	}
	if err := r.Validate(); err != nil {
		t.Errorf("fresh raster should validate: %v", err)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name           string
		w, h, channels int
	}{
		{"zero width", 0, 2, 4},
		{"zero height", 2, 0, 4},
		{"negative width", -1, 2, 4},
		{"zero channels", 2, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, tt.channels)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       *Raster
		wantErr bool
	}{
		{"nil", nil, true},
		{"exact", &Raster{Width: 2, Height: 2, Channels: 4, Pix: make([]uint8, 16)}, false},
		{"rgb", &Raster{Width: 2, Height: 2, Channels: 3, Pix: make([]uint8, 12)}, false},
		{"short buffer", &Raster{Width: 2, Height: 2, Channels: 4, Pix: make([]uint8, 15)}, true},
		{"padded buffer", &Raster{Width: 2, Height: 2, Channels: 4, Pix: make([]uint8, 20)}, true},
		{"zero width", &Raster{Width: 0, Height: 2, Channels: 4}, true},
		{"zero height", &Raster{Width: 2, Height: 0, Channels: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error should wrap ErrInvalid: %v", err)
			}
		})
	}
}

func TestFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 14, 13))
	img.Set(10, 10, color.RGBA{255, 0, 0, 255})
	img.Set(13, 12, color.RGBA{0, 0, 255, 255})

	r := FromImage(img)
	if r.Width != 4 || r.Height != 3 || r.Channels != RGBA {
		t.Fatalf("unexpected shape %dx%dx%d", r.Width, r.Height, r.Channels)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("converted raster invalid: %v", err)
	}

	if got := r.Pix[r.Offset(0, 0):r.Offset(0, 0)+4]; got[0] != 255 || got[3] != 255 {
		t.Errorf("top-left pixel: got %v, want red", got)
	}
	if got := r.Pix[r.Offset(3, 2):r.Offset(3, 2)+4]; got[2] != 255 || got[3] != 255 {
		t.Errorf("bottom-right pixel: got %v, want blue", got)
	}
}

func TestImage_SharesBuffer(t *testing.T) {
	r, _ := New(2, 2, RGBA)
	img, err := r.Image()
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	img.SetNRGBA(1, 1, color.NRGBA{1, 2, 3, 4})
	if r.Pix[r.Offset(1, 1)] != 1 {
		t.Error("Image should share the raster buffer")
	}
}

func TestImage_RejectsNonRGBA(t *testing.T) {
	r, _ := New(2, 2, 3)
	if _, err := r.Image(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for 3-channel raster, got %v", err)
	}
}

func TestClone(t *testing.T) {
	r, _ := New(1, 1, RGBA)
	c := r.Clone()
	c.Pix[0] = 9
	if r.Pix[0] != 0 {
		t.Error("Clone should not share the buffer")
	}
}

func TestFit(t *testing.T) {
	r, _ := New(100, 50, RGBA)

	same, err := Fit(r, 200)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if same != r {
		t.Error("raster within bounds should be returned unchanged")
	}

	small, err := Fit(r, 20)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if small.Width != 20 || small.Height != 10 {
		t.Errorf("fitted size: got %dx%d, want 20x10", small.Width, small.Height)
	}
}
