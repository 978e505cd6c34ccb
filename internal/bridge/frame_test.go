package bridge

import (
	"errors"
	"testing"
)

func TestAdaptFrame(t *testing.T) {
	t.Run("valid buffer", func(t *testing.T) {
		img, err := adaptFrame(make([]byte, 4*3*3), 4, 3)
		if err != nil {
			t.Fatalf("adaptFrame() error = %v", err)
		}
		defer img.Close()

		if img.Width() != 4 || img.Height() != 3 {
			t.Errorf("expected 4x3 image, got %dx%d", img.Width(), img.Height())
		}
		if img.Closed() {
			t.Error("fresh image must not be closed")
		}
	})

	t.Run("oversized buffer tolerated", func(t *testing.T) {
		img, err := adaptFrame(make([]byte, 100), 2, 2)
		if err != nil {
			t.Fatalf("adaptFrame() error = %v", err)
		}
		img.Close()
	})

	t.Run("short buffer", func(t *testing.T) {
		_, err := adaptFrame(make([]byte, 10), 4, 3)
		if !errors.Is(err, ErrShortBuffer) {
			t.Errorf("expected ErrShortBuffer, got %v", err)
		}
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		for _, dims := range [][2]int{{0, 3}, {4, 0}, {-1, 3}} {
			if _, err := adaptFrame(make([]byte, 36), dims[0], dims[1]); err == nil {
				t.Errorf("expected error for dimensions %dx%d", dims[0], dims[1])
			}
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		img, err := adaptFrame(make([]byte, 36), 2, 2)
		if err != nil {
			t.Fatalf("adaptFrame() error = %v", err)
		}
		if err := img.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := img.Close(); err != nil {
			t.Fatalf("second Close() error = %v", err)
		}
		if !img.Closed() {
			t.Error("expected image to report closed")
		}
	})
}
