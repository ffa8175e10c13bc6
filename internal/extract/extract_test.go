package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestPlainText(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(Config{})
	for _, name := range []string{"notes.txt", "README.MD"} {
		p := writeFile(t, dir, name, "\n  Invoice #42 total 17.50  \n\n")
		got, err := r.Extract(context.Background(), p)
		if err != nil {
			t.Fatalf("Extract(%s) failed: %v", name, err)
		}
		if got != "Invoice #42 total 17.50" {
			t.Errorf("Extract(%s) = %q", name, got)
		}
	}
}

func TestCSVAlignsColumns(t *testing.T) {
	p := writeFile(t, t.TempDir(), "items.csv", "item,qty,price\napple,3,1.20\n,,\nwatermelon,1,4.00\n")
	got, err := NewRegistry(Config{}).Extract(context.Background(), p)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := strings.Join([]string{
		"item        qty  price",
		"apple       3    1.20",
		"watermelon  1    4.00",
	}, "\n")
	if got != want {
		t.Errorf("Extract = \n%s\nwant\n%s", got, want)
	}
}

func TestSpreadsheet(t *testing.T) {
	p := filepath.Join(t.TempDir(), "orders.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "order")
	_ = f.SetCellValue("Sheet1", "B1", "status")
	_ = f.SetCellValue("Sheet1", "A2", "PO-7")
	_ = f.SetCellValue("Sheet1", "B2", "shipped")
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	f.Close()

	got, err := NewRegistry(Config{}).Extract(context.Background(), p)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(got, "PO-7") || !strings.Contains(got, "shipped") {
		t.Errorf("Extract = %q", got)
	}
	if strings.Contains(got, "Sheet1") {
		t.Errorf("single sheet should not be titled: %q", got)
	}
}

func TestDocx(t *testing.T) {
	p := filepath.Join(t.TempDir(), "letter.docx")
	out, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	w, _ := zw.Create("word/document.xml")
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Dear </w:t></w:r><w:r><w:t>customer,</w:t></w:r></w:p>
<w:p><w:r><w:t>Total</w:t><w:tab/><w:t>12.00</w:t></w:r></w:p>
</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	got, err := NewRegistry(Config{}).Extract(context.Background(), p)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got != "Dear customer,\nTotal\t12.00" {
		t.Errorf("Extract = %q", got)
	}
}

func TestUnsupportedAndMissing(t *testing.T) {
	r := NewRegistry(Config{})
	_, err := r.Extract(context.Background(), "archive.tar.gz")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	if err != nil && !strings.Contains(err.Error(), ".docx .jpeg") {
		t.Errorf("err = %v, want the supported extensions listed", err)
	}
	_, err = r.Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestRegisterOverrides(t *testing.T) {
	r := NewRegistry(Config{})
	r.Register("log", Func(func(context.Context, string) (string, error) { return "custom", nil }))
	p := writeFile(t, t.TempDir(), "app.log", "ignored")
	got, err := r.Extract(context.Background(), p)
	if err != nil || got != "custom" {
		t.Errorf("Extract = %q, %v", got, err)
	}
	found := false
	for _, ext := range r.Supported() {
		if ext == ".log" {
			found = true
		}
	}
	if !found {
		t.Errorf("Supported() = %v, missing .log", r.Supported())
	}
}

func fakeTesseract(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	script := "#!/bin/sh\nprintf '%s' '" + output + "'\n"
	p := filepath.Join(t.TempDir(), "tesseract")
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOCR(t *testing.T) {
	img := writeFile(t, t.TempDir(), "scan.png", "not really a png")
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"readable", "Rx: Amoxicillin 500mg twice daily", "Rx: Amoxicillin 500mg twice daily"},
		{"too short", "  smudge \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(Config{TesseractPath: fakeTesseract(t, tt.output)})
			got, err := r.Extract(context.Background(), img)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOCRMissingBinary(t *testing.T) {
	img := writeFile(t, t.TempDir(), "scan.jpg", "x")
	r := NewRegistry(Config{TesseractPath: filepath.Join(t.TempDir(), "no-such-tesseract")})
	_, err := r.Extract(context.Background(), img)
	if !errors.Is(err, ErrOCRUnavailable) {
		t.Errorf("err = %v, want ErrOCRUnavailable", err)
	}
}
